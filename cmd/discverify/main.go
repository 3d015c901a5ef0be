package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/verify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errFailing stops the remaining images when --stop-on-error is set.
var errFailing = errors.New("image has failing sectors")

// result is the outcome of verifying one image.
type result struct {
	path    string
	sectors uint64
	report  verify.Report
	err     error
}

var rootCmd = &cobra.Command{
	Use:   "discverify [image...]",
	Short: "Verify the EDC and ECC of every data sector of disc images",
	Long: `Verify the sectors of one or more optical disc images.

Images are verified concurrently. For each image the number of failing sectors
and of sectors that cannot be checked (audio, cooked or form 2 sectors without
EDC) is printed.

Examples:
  discverify game.cue
  discverify --stop-on-error disc1.mds disc2.ccd`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		stop, err := cmd.Flags().GetBool("stop-on-error")
		if err != nil {
			return fmt.Errorf("error getting stop-on-error flag: %w", err)
		}

		level := logging.LEVEL_INFO
		if verbose {
			level = logging.LEVEL_DEBUG
		}
		logger := logging.NewSimpleLogger(os.Stderr, level, true)

		results := make([]result, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(runtime.NumCPU())
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				results[i] = verifyImage(ctx, path, options.WithLogger(logger))
				if stop && len(results[i].report.Failing) > 0 {
					return fmt.Errorf("%s: %w", path, errFailing)
				}
				return nil
			})
		}
		groupErr := g.Wait()

		bad := false
		for _, r := range results {
			if r.path == "" {
				continue
			}
			bad = printResult(r, verbose) || bad
		}
		if groupErr != nil {
			return groupErr
		}
		if bad {
			return errFailing
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolP("verbose", "v", false, "List failing sectors and enable debug logging")
	rootCmd.Flags().Bool("stop-on-error", false, "Stop verifying other images after the first failing sector")
}

// verifyImage checks every track of the image at path. It returns early when ctx is done.
func verifyImage(ctx context.Context, path string, opts ...options.Option) result {
	r := result{path: path}
	img, err := disc.Open(path, opts...)
	if err != nil {
		r.err = err
		return r
	}
	defer img.Close()

	r.sectors = img.Sectors()
	for _, t := range img.Tracks() {
		if err := ctx.Err(); err != nil {
			r.err = err
			return r
		}
		report, err := img.VerifyTrack(t.Sequence)
		if err != nil {
			r.err = err
			return r
		}
		r.report.Merge(report)
	}
	r.report.Finish()
	return r
}

// printResult writes the summary of one image and reports whether it failed.
func printResult(r result, verbose bool) bool {
	if r.err != nil {
		fmt.Printf("%s: error: %v\n", r.path, r.err)
		return true
	}
	fmt.Printf("%s: %s, %d sectors, %d failing, %d unknown\n",
		r.path, r.report.Status, r.sectors, len(r.report.Failing), len(r.report.Unknown))
	if verbose {
		for _, lba := range r.report.Failing {
			fmt.Printf("  failing sector %d\n", lba)
		}
	}
	return len(r.report.Failing) > 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
