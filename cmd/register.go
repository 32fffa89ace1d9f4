package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/refstore"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

var registerCmd = &cobra.Command{
	Use:   "register <name> <image-file>",
	Short: "Register a new person from a photo",
	Long: `Saves a photo of a new person into the reference folder.
The name is normalized the same way as in the browser UI ("Jane Doe!" becomes
"jane_doe") and an already registered name is never overwritten.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	capture, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	// No engine: the store is only invalidated here, never encoded
	store := refstore.NewStore(cfg.Storage.ImagesDir, nil)
	result, err := registration.NewRegistrar(store, cfg.Recognition.JPEGQuality).Register(args[0], capture)
	if err != nil {
		return err
	}

	fmt.Printf("Saved: %s\n", result.Path)
	return nil
}
