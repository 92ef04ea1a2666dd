package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/facegate/internal/faceindex"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image-file>",
	Short: "Match a local image against the enrolled faces",
	Long: `Extract the most confident face from a local image and report the best
match from the index. Does not mark attendance; use the server API for
that.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("threshold", 0, "Override the configured similarity threshold")
	recognizeCmd.Flags().Int("top", 5, "Number of nearest identities to list")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if a.index.Size() == 0 {
		return fmt.Errorf("the face index is empty, run sync or enroll first")
	}

	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	face, err := a.enc.EncodeForRecognition(ctx, imageData)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	threshold := a.cfg.Recognition.Threshold
	if override := mustGetFloat64(cmd, "threshold"); override > 0 {
		threshold = override
	}

	outcome := a.matcher.FindBestMatch(face.Embedding, threshold)

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	switch outcome.Status {
	case faceindex.StatusSuccess:
		fmt.Printf("%s Matched %s (similarity %.4f, threshold %.2f)\n",
			green("✓"), outcome.MatchedIdentityID, outcome.Similarity, threshold)
	case faceindex.StatusLowQuality:
		fmt.Printf("%s Matched %s but flagged low quality: %s\n",
			red("!"), outcome.MatchedIdentityID, outcome.Reason)
	case faceindex.StatusNoMatch:
		fmt.Printf("%s No match (best similarity %.4f, threshold %.2f)\n",
			red("✗"), outcome.Similarity, threshold)
	default:
		return fmt.Errorf("match failed: %s", outcome.Reason)
	}

	top := mustGetInt(cmd, "top")
	if top > 0 && len(outcome.AllSimilarities) > 0 {
		type candidate struct {
			id  string
			sim float64
		}
		candidates := make([]candidate, 0, len(outcome.AllSimilarities))
		for id, sim := range outcome.AllSimilarities {
			candidates = append(candidates, candidate{id, sim})
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].sim != candidates[j].sim {
				return candidates[i].sim > candidates[j].sim
			}
			return candidates[i].id < candidates[j].id
		})
		if top > len(candidates) {
			top = len(candidates)
		}

		fmt.Println("\nNearest identities:")
		for _, c := range candidates[:top] {
			fmt.Printf("  %-24s %.4f\n", c.id, c.sim)
		}
	}

	return nil
}
