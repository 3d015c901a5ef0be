package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

var (
	version = "dev"
)

// chunk is the number of sectors read at a time.
const chunk = 256

// truncateString truncates the input string to the specified max length.
// If truncation occurs, it prepends "..." to indicate the string has been shortened.
func truncateString(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	if maxLength <= 3 {
		return input[len(input)-maxLength:]
	}
	return "..." + input[len(input)-(maxLength-3):]
}

// CreateProgressCallback returns a ProgressCallback that shows the track being written.
func CreateProgressCallback(spinner *yacspin.Spinner) func(name string, current, total uint64, number, count int) {
	return func(name string, current, total uint64, number, count int) {
		if spinner == nil {
			return
		}
		width, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			width = 80
		}

		fixedPart := fmt.Sprintf(" [%d/%d] ", number, count)
		suffixPart := fmt.Sprintf(" - %.2f%%", float64(current)/float64(total)*100)
		availableSpace := width - len(fixedPart) - len(suffixPart) - 6
		if availableSpace < 10 {
			availableSpace = 10
		}

		spinner.Message(fmt.Sprintf("%s%s%s", fixedPart, truncateString(name, availableSpace), suffixPart))
	}
}

// InitializeSpinner sets up and starts the yacspin spinner.
func InitializeSpinner() (*yacspin.Spinner, error) {
	settings := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		ShowCursor:        false,
		SpinnerAtEnd:      false,
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

// extract writes every track of img to dir as trackNN.bin.
func extract(img disc.Image, dir string, long bool, progress func(string, uint64, uint64, int, int)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tracks := img.Tracks()
	for i := range tracks {
		t := &tracks[i]
		name := filepath.Join(dir, fmt.Sprintf("track%02d.bin", t.Sequence))
		if err := extractTrack(img, t, name, long, func(current uint64) {
			progress(name, current, t.Sectors(), i+1, len(tracks))
		}); err != nil {
			return err
		}
	}
	return nil
}

func extractTrack(img disc.Image, t *track.Track, name string, long bool, progress func(uint64)) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	for rel := uint64(0); rel < t.Sectors(); rel += chunk {
		n := min(chunk, t.Sectors()-rel)
		var data []byte
		if long {
			data, err = img.ReadSectorsLongInTrack(rel, n, t.Sequence)
		} else {
			data, err = img.ReadSectorsInTrack(rel, n, t.Sequence)
		}
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		progress(rel + n)
	}
	return f.Close()
}

func main() {
	// Logging level flags
	debug := flag.Bool("v", false, "Enable verbose (debug) logging")
	trace := flag.Bool("vv", false, "Enable trace logging")

	long := flag.Bool("long", false, "Write whole stored sectors instead of user data")
	outputDir := flag.String("o", "./extracted", "Output directory for extracted tracks")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("discextract v" + version)
		fmt.Println("Usage: discextract [options] <path-to-image>")
		fmt.Println("  -v               Enable verbose (debug) logging")
		fmt.Println("  -vv              Enable trace logging")
		fmt.Println("  -long            Write whole stored sectors instead of user data")
		fmt.Println("  -o <directory>   Output directory (default './extracted')")
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	switch {
	case *trace:
		level = logging.LEVEL_TRACE
	case *debug:
		level = logging.LEVEL_DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, true)

	img, err := disc.Open(flag.Arg(0), options.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	spinner, err := InitializeSpinner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize spinner: %v\n", err)
		fmt.Fprintf(os.Stderr, "Progress updates will be disabled.\n")
	}

	err = extract(img, *outputDir, *long, CreateProgressCallback(spinner))
	if spinner == nil {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to extract image: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err != nil {
		spinner.StopFailMessage(fmt.Sprintf(" Failed to extract image: %v", err))
		spinner.StopFail()
		os.Exit(1)
	}
	spinner.StopMessage(fmt.Sprintf(" All tracks extracted successfully to %s!", *outputDir))
	spinner.Stop()
}
