package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
	"github.com/kozaktomas/face-attendance/internal/refstore"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List registered people",
	Long: `Lists every person with a reference photo.
With --encode the face models are loaded and every photo is checked for a
detectable face; people without one will never be recognized.`,
	RunE: runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)

	peopleCmd.Flags().Bool("encode", false, "Compute face encodings and report photos without a face")
	peopleCmd.Flags().Bool("json", false, "Output as JSON")
}

// PersonInfo is one row of the people listing.
type PersonInfo struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
	Face     *bool  `json:"face,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runPeople(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	encode := mustGetBool(cmd, "encode")
	jsonOutput := mustGetBool(cmd, "json")

	refs, err := refstore.LoadReferences(cfg.Storage.ImagesDir)
	if err != nil {
		return err
	}

	people := make([]PersonInfo, len(refs))
	for i, ref := range refs {
		people[i] = PersonInfo{Identity: ref.Identity, Path: ref.Path}
	}

	var duration time.Duration
	if encode && len(refs) > 0 {
		startTime := time.Now()
		if err := encodePeople(cfg, refs, people, jsonOutput); err != nil {
			return err
		}
		duration = time.Since(startTime)
	}

	if jsonOutput {
		return outputJSON(people)
	}

	if len(people) == 0 {
		fmt.Printf("No people registered in %s.\n", cfg.Storage.ImagesDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if encode {
		fmt.Fprintln(w, "NAME\tFACE\tFILE")
		fmt.Fprintln(w, "----\t----\t----")
	} else {
		fmt.Fprintln(w, "NAME\tFILE")
		fmt.Fprintln(w, "----\t----")
	}
	missing := 0
	for _, p := range people {
		if !encode {
			fmt.Fprintf(w, "%s\t%s\n", p.Identity, p.Path)
			continue
		}
		status := "yes"
		switch {
		case p.Error != "":
			status = "error: " + p.Error
			missing++
		case p.Face != nil && !*p.Face:
			status = "NO"
			missing++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Identity, status, p.Path)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d people\n", len(people))
	if encode {
		fmt.Printf("Without a detectable face: %d\n", missing)
		fmt.Printf("Duration: %s\n", formatDuration(duration))
	}
	return nil
}

// encodePeople runs face detection on every reference and records the outcome in people.
func encodePeople(cfg *config.Config, refs []refstore.Reference, people []PersonInfo, quiet bool) error {
	engine, err := recognizer.New(cfg.Recognition.ModelsDir, cfg.Recognition.CNN, cfg.Recognition.JPEGQuality)
	if err != nil {
		return err
	}
	defer engine.Close()

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(refs),
			progressbar.OptionSetDescription("Encoding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	for i, ref := range refs {
		_, err := refstore.Encode(engine, ref)
		found := err == nil
		switch {
		case err == nil, errors.Is(err, refstore.ErrNoFace):
			people[i].Face = &found
		default:
			people[i].Error = err.Error()
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		fmt.Println()
	}
	return nil
}
