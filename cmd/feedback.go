package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	feedbackName  string
	feedbackEmail string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Manage feedback entries",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <message>",
	Short: "Record a feedback entry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		entry, err := svc.AddFeedback(feedbackName, feedbackEmail, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Printf("Thanks! Recorded as %s\n", entry.ID)
		return nil
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		entries := svc.Feedback()
		if len(entries) == 0 {
			fmt.Println("No feedback yet")
			return nil
		}

		for _, e := range entries {
			when := time.UnixMilli(e.TS).Format("2006-01-02 15:04")
			who := e.Name
			if who == "" {
				who = "anonymous"
			}
			fmt.Printf("%s  %-12s %s\n", when, who, e.Message)
		}
		return nil
	},
}

var feedbackExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export feedback entries to a timestamped JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		path, err := svc.ExportFeedback()
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	feedbackAddCmd.Flags().StringVar(&feedbackName, "name", "", "your name (optional)")
	feedbackAddCmd.Flags().StringVar(&feedbackEmail, "email", "", "your email (optional)")

	feedbackCmd.AddCommand(feedbackAddCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackExportCmd)
}
