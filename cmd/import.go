package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [backup-file]",
	Short: "Restore note metadata from an exported JSON file",
	Long: `Merge notes from a previously exported backup file into the journal.

Only entries whose audio path lies inside the managed notes directory are
accepted, and entries are merged ahead of the existing list without any
de-duplication. Import restores metadata only: the audio files themselves
must already be present in the notes directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// No file picked: silently do nothing.
		if len(args) == 0 {
			return nil
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		merged, err := svc.Import(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Merged %d note(s)\n", merged)
		fmt.Println("Note: only metadata was restored; audio files are not verified to exist")
		return nil
	},
}
