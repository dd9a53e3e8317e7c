package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <note-id> <new-title>",
	Short: "Rename a voice note",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		title := strings.Join(args[1:], " ")

		svc, err := newService()
		if err != nil {
			return err
		}

		if svc.Get(id) == nil {
			return fmt.Errorf("no note with id %s", id)
		}
		if err := svc.Rename(id, title); err != nil {
			return fmt.Errorf("rename failed: %w", err)
		}

		fmt.Printf("Renamed %s to %q\n", id, title)
		return nil
	},
}
