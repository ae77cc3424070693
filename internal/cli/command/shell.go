package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/elacour/granary/internal/cli/repl"
)

// ShellCommand creates the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive session",
		Action: func(c *cli.Context) error {
			flags := ParseGlobalFlags(c)

			execute := func(args []string) error {
				switch args[0] {
				case "shell", "run":
					return fmt.Errorf("%s is not available inside the shell", args[0])
				}
				return App().Run(append(shellArgs(flags), args...))
			}

			r := repl.New(execute)
			if err := r.History().Load(); err != nil {
				fmt.Printf("Warning: could not load history: %v\n", err)
			}
			defer func() {
				if err := r.History().Save(); err != nil {
					fmt.Printf("Warning: could not save history: %v\n", err)
				}
			}()

			fmt.Println("granary interactive shell, type help for commands")
			return r.Run()
		},
	}
}

// shellArgs rebuilds the global flag prefix so every line the shell
// dispatches runs against the same store and output format.
func shellArgs(flags *GlobalFlags) []string {
	args := []string{"granary"}
	if flags.Config != "" {
		args = append(args, "--config", flags.Config)
	}
	if flags.DataDir != "" {
		args = append(args, "--data-dir", flags.DataDir)
	}
	if flags.Medium != "" {
		args = append(args, "--medium", flags.Medium)
	}
	if flags.Capacity > 0 {
		args = append(args, "--capacity", fmt.Sprintf("%d", flags.Capacity))
	}
	if flags.Output != "" {
		args = append(args, "--output", flags.Output)
	}
	if flags.Wide {
		args = append(args, "--wide")
	}
	if flags.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
