package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/voicenotelab/voicenote/internal/playback"

	"github.com/spf13/cobra"
)

var (
	playRate    float64
	playReverse bool
)

var playCmd = &cobra.Command{
	Use:   "play <note-id>",
	Short: "Play a voice note",
	Long: `Play a note back through the configured player. While playing:

  p        pause or resume
  r <rate> change the playback speed live (pitch is preserved)
  q        stop

With --reverse, a pre-rendered reversed sibling file (<name>_reversed.<ext>)
is played when present; otherwise the note plays forward and a notice is
printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		err = svc.Play(args[0], playback.Options{Reverse: playReverse, Rate: playRate})
		if errors.Is(err, playback.ErrReversedAssetMissing) {
			fmt.Println("No reversed audio for this note, playing forward")
		} else if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		defer svc.StopPlayback()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			svc.Playback().Wait(nil)
			close(done)
		}()

		go readPlaybackCommands(svc.Playback())

		select {
		case <-sigChan:
			fmt.Println("\nStopped")
		case <-done:
			fmt.Println("Done")
		}
		return nil
	},
}

// readPlaybackCommands wires stdin to the live playback controls.
func readPlaybackCommands(session *playback.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "p":
			if session.State() == playback.StatePaused {
				session.Resume()
			} else {
				session.Pause()
			}
		case "r":
			if len(fields) < 2 {
				fmt.Println("usage: r <rate>")
				continue
			}
			rate, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Printf("invalid rate %q\n", fields[1])
				continue
			}
			if err := session.SetRate(rate); err != nil {
				fmt.Printf("failed to change rate: %v\n", err)
			}
		case "q":
			session.Stop()
			return
		}
	}
}

func init() {
	playCmd.Flags().Float64VarP(&playRate, "rate", "r", 0, "playback speed multiplier (default from config)")
	playCmd.Flags().BoolVar(&playReverse, "reverse", false, "play the pre-rendered reversed file if one exists")
}
