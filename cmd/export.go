package cmd

import (
	"fmt"
	"log/slog"

	"github.com/voicenotelab/voicenote/internal/backup"

	"github.com/spf13/cobra"
)

var exportShare bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export note metadata to a timestamped JSON file",
	Long: `Export the full note collection as a JSON file in the configured
export directory. Only metadata is exported; the audio files stay in the
notes directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		path, err := svc.Export()
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)

		if exportShare {
			if err := backup.Share(path); err != nil {
				slog.Warn("Could not hand the export to an opener", "error", err)
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportShare, "open", false, "hand the exported file to the system opener")
}
