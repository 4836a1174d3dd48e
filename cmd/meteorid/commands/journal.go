package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// JournalCmd shows recent refresh journal entries
var JournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent refresh journal entries",
	Long:  `List recent refresh attempts with trigger, outcome, row counts and errors, newest first.`,
	RunE:  runJournal,
}

var journalLimit int

func init() {
	JournalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum entries to show")
}

func runJournal(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := rt.journal.Recent(journalLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		pterm.Info.Println("No refresh attempts recorded yet")
		return nil
	}

	table := pterm.TableData{
		{"STARTED", "TRIGGER", "OUTCOME", "ROWS", "RETAINED", "REMOTE", "ERROR"},
	}
	for _, e := range entries {
		remote := "-"
		if e.RemoteCount != nil {
			remote = fmt.Sprintf("%d", *e.RemoteCount)
		}
		errText := e.Error
		if len(errText) > 48 {
			errText = errText[:45] + "..."
		}
		table = append(table, []string{
			e.StartedAt.Local().Format(time.DateTime),
			string(e.Trigger),
			string(e.Outcome),
			fmt.Sprintf("%d", e.RawRows),
			fmt.Sprintf("%d", e.RetainedRows),
			remote,
			errText,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
