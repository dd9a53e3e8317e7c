package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var searchQuery string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List voice notes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		notes := svc.List(searchQuery)
		if len(notes) == 0 {
			if searchQuery != "" {
				fmt.Printf("No notes matching %q\n", searchQuery)
			} else {
				fmt.Println("No notes yet - try 'voicenote record'")
			}
			return nil
		}

		for _, n := range notes {
			created := time.UnixMilli(n.CreatedAt).Format("2006-01-02 15:04")
			fmt.Printf("%s  %s  %-7s %s\n", n.ID, created, formatDuration(n.Duration), n.Title)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&searchQuery, "search", "s", "", "filter notes by title")
}
