package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [title]",
	Short: "Record a new voice note",
	Long: `Record audio from the configured capture source until Ctrl+C,
then save it as a new note. A second SIGTERM-style interruption discards
the recording instead of saving it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")

		svc, err := newService()
		if err != nil {
			return err
		}

		if err := svc.StartRecording(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		fmt.Println("Recording... press Ctrl+C to stop and save")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan

		if sig == syscall.SIGTERM {
			// The process is being torn down: finalize and discard
			// rather than leaking the in-flight capture.
			slog.Info("Discarding recording")
			return svc.DiscardRecording()
		}

		note, err := svc.StopRecording(title)
		if err != nil {
			// Never leave the capture running after a failed stop.
			svc.DiscardRecording()
			return fmt.Errorf("failed to stop recording: %w", err)
		}
		if note == nil {
			return nil
		}

		fmt.Printf("Saved %q (%s) as %s\n", note.Title, formatDuration(note.Duration), note.ID)
		return nil
	},
}

// formatDuration renders milliseconds as m:ss.
func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
