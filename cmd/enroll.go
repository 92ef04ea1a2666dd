package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id> <image-file>",
	Short: "Enroll a face from a local image file",
	Long: `Extract the face embedding from a local image and store it under the
given identity. The image must contain exactly one clearly detectable
face. Replaces any previous enrollment for the identity.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	identityID, imagePath := args[0], args[1]

	ctx := context.Background()
	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	service := a.service(nil)
	rec, err := service.Enroll(ctx, identityID, imageData)
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", identityID, err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Enrolled %s (detection confidence %.2f)\n", green("✓"), identityID, rec.Confidence)
	fmt.Printf("Index now holds %d faces\n", a.index.Size())
	return nil
}
