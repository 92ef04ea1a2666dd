package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/example/facegate/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the face index against the identity directory",
	Long: `Run one reconciliation pass: enroll every directory identity that has
a face image but no index record, evict records whose identity left the
directory, and save the snapshot.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("force", false, "Re-enroll identities that are already in the index")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	reconciler := a.reconciler()

	// OnProgress is called from the reconciler's workers, so the lazy bar
	// construction has to be a one-time synchronized init.
	var bar *progressbar.ProgressBar
	var barOnce sync.Once
	opts := syncer.Options{
		Force: mustGetBool(cmd, "force"),
		OnProgress: func(p syncer.ProgressInfo) {
			barOnce.Do(func() {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Syncing identities"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("identities"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionFullWidth(),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "=",
						SaucerHead:    ">",
						SaucerPadding: " ",
						BarStart:      "[",
						BarEnd:        "]",
					}),
				)
			})
			bar.Add(1)
		},
	}

	report, err := reconciler.Sync(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Println()

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("Sync finished in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("  %s %d enrolled\n", green("✓"), report.Succeeded)
	fmt.Printf("  %s %d skipped\n", yellow("-"), report.Skipped)
	if report.Removed > 0 {
		fmt.Printf("  %s %d evicted (left the directory)\n", yellow("-"), report.Removed)
	}
	if len(report.Failed) > 0 {
		fmt.Printf("  %s %d failed:\n", red("✗"), len(report.Failed))
		for _, failure := range report.Failed {
			fmt.Printf("      %s: %s\n", failure.IdentityID, failure.Reason)
		}
	}

	fmt.Printf("Index now holds %d faces\n", a.index.Size())
	return nil
}
