package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// ExportCommand creates the export command.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a slot as a portable JSON blob",
		ArgsUsage: "SLOT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write the export to a file instead of stdout",
			},
		},
		Action: func(c *cli.Context) error {
			slot, err := parseSlot(c.Args().First())
			if err != nil {
				return err
			}

			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			blob, err := eng.Coordinator.Export(ctx, slot)
			if err != nil {
				PrintError(err)
				return err
			}

			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, blob, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Printf("Exported slot %s to %s\n", c.Args().First(), out)
				return nil
			}

			_, err = os.Stdout.Write(append(blob, '\n'))
			return err
		},
	}
}

// ImportCommand creates the import command.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a previously exported blob into a slot",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "slot",
				Aliases:  []string{"s"},
				Usage:    "Target slot for the imported snapshot",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("export file required")
			}

			blob, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read export: %w", err)
			}

			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			if err := eng.Coordinator.Import(ctx, blob, c.Int("slot")); err != nil {
				PrintError(err)
				return err
			}

			fmt.Printf("Imported %s into slot %d\n", path, c.Int("slot"))
			return nil
		},
	}
}
