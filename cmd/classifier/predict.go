package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/aidetect-api/internal/imaging"
	"github.com/Brownie44l1/aidetect-api/internal/model"
)

var predictCmd = &cobra.Command{
	Use:   "predict <image>...",
	Short: "Classify local image files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

type fileResult struct {
	Path       string
	Prediction model.Prediction
	Elapsed    time.Duration
	Err        error
}

// classifyFile runs the same pipeline as POST /predict on a local file.
func classifyFile(decoder *imaging.Decoder, predictor *model.Predictor, path string) fileResult {
	res := fileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	img, err := decoder.Decode(data)
	if err != nil {
		res.Err = err
		return res
	}

	tensor := imaging.ToTensor(img)
	start := time.Now()
	res.Prediction, res.Err = predictor.Predict(tensor)
	res.Elapsed = time.Since(start)
	return res
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := loadModel(cfg, log)
	if err != nil {
		return err
	}
	defer session.Close()

	decoder := imaging.NewDecoder(cfg.App.MaxPixels)
	predictor := model.NewPredictor(session)

	var bar *progressbar.ProgressBar
	if len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Classifying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	ctx := cmd.Context()
	results := make([]fileResult, 0, len(args))
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		results = append(results, classifyFile(decoder, predictor, path))
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	failed := writeResults(os.Stdout, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return ctx.Err()
}

func writeResults(out io.Writer, results []fileResult) int {
	failed := 0
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tCLASS\tPROBABILITY\tTIME")
	fmt.Fprintln(w, "----\t-----\t-----------\t----")
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\terror\t-\t%v\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\n", r.Path, r.Prediction.Class, r.Prediction.Probability, r.Elapsed.Round(time.Millisecond))
	}
	w.Flush()
	return failed
}
