package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/elacour/granary/internal/cli/output"
	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/save"
)

const commandTimeout = 30 * time.Second

// SaveCommand creates the save command.
func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Write a snapshot to a slot",
		ArgsUsage: "SLOT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Read the snapshot from a JSON file instead of building a fresh one",
			},
			&cli.StringFlag{
				Name:  "character",
				Usage: "Character name to stamp on the snapshot",
			},
			&cli.StringFlag{
				Name:  "farm",
				Usage: "Farm name to stamp on the snapshot",
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

			if from := c.String("from"); from != "" {
				err = saveFromFile(ctx, eng.Coordinator, from, slot)
			} else {
				err = eng.Coordinator.Save(ctx, slot, func(s *domain.Snapshot) {
					if name := c.String("character"); name != "" {
						s.Player.Name = name
						s.Metadata.CharacterName = name
					}
					if farm := c.String("farm"); farm != "" {
						s.Metadata.FarmName = farm
					}
				})
			}
			if err != nil {
				PrintError(err)
				return err
			}

			fmt.Printf("Saved slot %s\n", c.Args().First())
			return nil
		},
	}
}

// saveFromFile reads a plain snapshot JSON document and persists it
// under the given slot.
func saveFromFile(ctx context.Context, coordinator *save.Coordinator, path string, slot int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot file: %w", err)
	}

	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse snapshot file: %w", err)
	}
	s.Metadata.SaveSlot = slot
	s.Metadata.AutoSave = slot == domain.AutosaveSlot
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}

	if err := s.Validate(); err != nil {
		return err
	}
	return coordinator.SaveSnapshot(ctx, &s)
}

// LoadCommand creates the load command.
func LoadCommand() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Read a snapshot from a slot",
		ArgsUsage: "SLOT",
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

			snapshot, err := eng.Coordinator.Load(ctx, slot)
			if err != nil {
				PrintError(err)
				return err
			}

			flags := ParseGlobalFlags(c)
			formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
			return formatter.Format(os.Stdout, snapshot)
		},
	}
}

// ListCommand creates the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored snapshots without loading their payloads",
		Action: func(c *cli.Context) error {
			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			slots, err := eng.Coordinator.List(ctx)
			if err != nil {
				PrintError(err)
				return err
			}

			flags := ParseGlobalFlags(c)
			if flags.Output != string(output.FormatTable) {
				formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
				return formatter.Format(os.Stdout, slots)
			}

			if len(slots) == 0 {
				fmt.Println("No snapshots stored")
				return nil
			}

			table := output.Table{
				Headers: []string{"SLOT", "CHARACTER", "FARM", "VERSION", "SAVED", "SIZE", "FLAGS"},
			}
			for _, s := range slots {
				table.Rows = append(table.Rows, []string{
					slotLabel(s),
					s.CharacterName,
					s.FarmName,
					s.Version,
					time.UnixMilli(s.Timestamp).Format("2006-01-02 15:04"),
					fmt.Sprintf("%d B", s.Size),
					slotFlags(s),
				})
			}
			return table.Render(os.Stdout)
		},
	}
}

func slotLabel(s save.SlotInfo) string {
	if s.AutoSave {
		return save.AutosaveKey
	}
	return fmt.Sprintf("%d", s.Slot)
}

func slotFlags(s save.SlotInfo) string {
	var flags []string
	if s.Recovered {
		flags = append(flags, "recovered")
	}
	if s.Migrated {
		flags = append(flags, "migrated")
	}
	return strings.Join(flags, ",")
}

// DeleteCommand creates the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a slot and its backup",
		ArgsUsage: "SLOT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			slot, err := parseSlot(c.Args().First())
			if err != nil {
				return err
			}

			if !c.Bool("force") {
				fmt.Printf("Delete slot %s and its backup? [y/N]: ", c.Args().First())
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			if err := eng.Coordinator.Delete(ctx, slot); err != nil {
				PrintError(err)
				return err
			}

			fmt.Printf("Deleted slot %s\n", c.Args().First())
			return nil
		},
	}
}
