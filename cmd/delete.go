package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a voice note and its audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		svc, err := newService()
		if err != nil {
			return err
		}

		if svc.Get(id) == nil {
			return fmt.Errorf("no note with id %s", id)
		}
		if err := svc.Delete(id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}
