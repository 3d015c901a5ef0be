package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/theckman/yacspin"
)

var (
	version = "dev"
)

// InitializeSpinner sets up and starts the yacspin spinner.
func InitializeSpinner() (*yacspin.Spinner, error) {
	settings := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		ShowCursor:        false,
		CharSet:           yacspin.CharSets[14],
		Colors:            []string{"fgHiCyan"},
		StopColors:        []string{"fgHiGreen"},
		StopFailColors:    []string{"fgHiRed"},
		StopFailCharacter: "✗",
		StopCharacter:     "✓",
	}
	spinner, err := yacspin.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create spinner: %w", err)
	}
	if err := spinner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start spinner: %w", err)
	}
	return spinner, nil
}

// outputPath derives <name>.ccd in the working directory from the input image.
func outputPath(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".ccd"
}

func main() {
	debug := flag.Bool("v", false, "Enable verbose (debug) logging")
	output := flag.String("o", "", "Output descriptor (default '<input name>.ccd')")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("ccdconvert v" + version)
		fmt.Println("Usage: ccdconvert [options] <path-to-image>")
		fmt.Println("  -v               Enable verbose (debug) logging")
		fmt.Println("  -o <file.ccd>    Output descriptor (default '<input name>.ccd')")
		os.Exit(1)
	}
	input := flag.Arg(0)
	if *output == "" {
		*output = outputPath(input)
	}

	level := logging.LEVEL_INFO
	if *debug {
		level = logging.LEVEL_DEBUG
	}
	logger := options.WithLogger(logging.NewSimpleLogger(os.Stderr, level, true))

	img, err := disc.Open(input, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	w, err := disc.Create(*output, logger, options.WithMediaType(img.MediaType()), options.WithSectors(img.Sectors()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create image: %v\n", err)
		os.Exit(1)
	}

	spinner, err := InitializeSpinner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize spinner: %v\n", err)
	}
	progress := options.WithProgress(func(stage string, current, total uint64) {
		if spinner != nil {
			spinner.Message(fmt.Sprintf(" %s %d/%d sectors - %.2f%%", stage, current, total, float64(current)/float64(total)*100))
		}
	})

	err = disc.Convert(img, w, logger, progress)
	switch {
	case spinner == nil && err != nil:
		fmt.Fprintf(os.Stderr, "Failed to convert image: %v\n", err)
		os.Exit(1)
	case spinner == nil:
		fmt.Printf("Converted %s to %s\n", input, *output)
	case err != nil:
		spinner.StopFailMessage(fmt.Sprintf(" Failed to convert image: %v", err))
		spinner.StopFail()
		os.Exit(1)
	default:
		spinner.StopMessage(fmt.Sprintf(" Converted %s to %s", input, *output))
		spinner.Stop()
	}
}
