package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the state of the face index",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Bool("list", false, "List every enrolled identity")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("%s %d\n", bold("Enrolled faces:"), a.index.Size())
	fmt.Printf("%s %d\n", bold("Embedding dim: "), a.index.Dim())
	fmt.Printf("%s %.2f\n", bold("Threshold:     "), a.cfg.Recognition.Threshold)
	if a.cfg.Snapshot.Path != "" {
		fmt.Printf("%s %s\n", bold("Snapshot:      "), a.cfg.Snapshot.Path)
	}

	if a.attStore != nil {
		loc, err := time.LoadLocation(a.cfg.Attendance.Timezone)
		if err != nil {
			return fmt.Errorf("loading timezone: %w", err)
		}
		today := time.Now().In(loc).Format("2006-01-02")
		count, err := a.attStore.CountMarks(ctx, today)
		if err != nil {
			return fmt.Errorf("counting attendance: %w", err)
		}
		fmt.Printf("%s %d marks on %s\n", bold("Attendance:    "), count, today)
	}

	if mustGetBool(cmd, "list") {
		fmt.Println()
		for _, rec := range a.index.Snapshot() {
			fmt.Printf("  %-24s source=%-6s confidence=%.2f updated=%s\n",
				rec.IdentityID, rec.Source, rec.Confidence,
				rec.UpdatedAt.Format(time.RFC3339))
		}
	}

	return nil
}
