package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/elacour/granary/internal/cli/output"
)

// ErrorsCommand creates the errors command.
func ErrorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "errors",
		Usage: "Show the recorded error history",
		Action: func(c *cli.Context) error {
			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			records := eng.Coordinator.ErrorHistory()

			flags := ParseGlobalFlags(c)
			if flags.Output != string(output.FormatTable) {
				formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
				return formatter.Format(os.Stdout, records)
			}

			if len(records) == 0 {
				fmt.Println("No errors recorded")
				return nil
			}

			table := output.Table{
				Headers: []string{"TIME", "OP", "KEY", "KIND", "SEVERITY", "MESSAGE"},
			}
			for _, r := range records {
				table.Rows = append(table.Rows, []string{
					r.Timestamp.Format(time.RFC3339),
					string(r.Op),
					r.Key,
					string(r.Kind),
					string(r.Severity),
					r.Message,
				})
			}
			return table.Render(os.Stdout)
		},
	}
}

// QuotaCommand creates the quota command.
func QuotaCommand() *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "Show the storage byte budget",
		Action: func(c *cli.Context) error {
			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			quota := eng.Coordinator.Quota()

			flags := ParseGlobalFlags(c)
			if flags.Output != string(output.FormatTable) {
				formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
				return formatter.Format(os.Stdout, quota)
			}

			fmt.Printf("Used:     %d B\n", quota.Used)
			if quota.Capacity > 0 {
				fmt.Printf("Capacity: %d B\n", quota.Capacity)
				fmt.Printf("Free:     %d B\n", quota.Free())
			} else {
				fmt.Println("Capacity: unlimited")
			}
			return nil
		},
	}
}
