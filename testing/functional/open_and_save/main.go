package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit"
	dtest "github.com/bgrewell/disc-kit/internal/testing"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/usage"
	"github.com/spf13/afero"
)

// compare reads every sector of both images and reports the first difference.
func compare(a, b disc.Image) error {
	if a.Sectors() != b.Sectors() {
		return fmt.Errorf("sector count differs: %d and %d", a.Sectors(), b.Sectors())
	}
	ta, tb := a.Tracks(), b.Tracks()
	if len(ta) != len(tb) {
		return fmt.Errorf("track count differs: %d and %d", len(ta), len(tb))
	}
	for i := range ta {
		if ta[i].StartSector != tb[i].StartSector || ta[i].EndSector != tb[i].EndSector || ta[i].Type != tb[i].Type {
			return fmt.Errorf("track %d differs", ta[i].Sequence)
		}
		for rel := uint64(0); rel < ta[i].Sectors(); rel++ {
			sa, err := a.ReadSectorsInTrack(rel, 1, ta[i].Sequence)
			if err != nil {
				return err
			}
			sb, err := b.ReadSectorsInTrack(rel, 1, tb[i].Sequence)
			if err != nil {
				return err
			}
			if !bytes.Equal(sa, sb) {
				return fmt.Errorf("track %d sector %d differs", ta[i].Sequence, rel)
			}
		}
	}
	return nil
}

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("open_and_save"),
		usage.WithApplicationDescription("open_and_save is a functional testing application that is part of disc-kit and is designed to verify that the open, read and CloneCD writing logic of disc-kit is working as expected. When <input>.json exists the layout is also checked against it."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	rm := u.AddBooleanOption("rm", "remove-test-file", true, "Remove the test files after running the tests", "", nil)
	input := u.AddArgument(1, "input", "The input image to run the tests against", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if input == nil || *input == "" {
		u.PrintError(fmt.Errorf("location of the input image <input> must be provided"))
		os.Exit(1)
	}

	logger := options.WithLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_TRACE, true))
	src, err := disc.Open(*input, logger)
	if err != nil {
		fmt.Printf("Failed to open image: %s\n", err)
		os.Exit(1)
	}
	defer src.Close()

	gtPath := strings.TrimSuffix(*input, filepath.Ext(*input)) + ".json"
	if _, err := os.Stat(gtPath); err == nil {
		truth, err := dtest.LoadGroundTruth(afero.NewOsFs(), gtPath)
		if err != nil {
			fmt.Printf("Failed to load ground truth: %s\n", err)
			os.Exit(1)
		}
		if err := dtest.Validate(src.Layout(), truth); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	// Save the image to a temporary CloneCD image
	dir, err := os.MkdirTemp("", "open_and_save_test_*")
	if err != nil {
		fmt.Printf("Failed to create temporary directory: %s\n", err)
		os.Exit(1)
	}
	if *rm {
		defer os.RemoveAll(dir)
	} else {
		fmt.Printf("Temporary directory: %s\n", dir)
	}

	out := filepath.Join(dir, "copy.ccd")
	w, err := disc.Create(out, logger, options.WithMediaType(src.MediaType()), options.WithSectors(src.Sectors()))
	if err != nil {
		fmt.Printf("Failed to create image: %s\n", err)
		os.Exit(1)
	}
	if err := disc.Convert(src, w, logger); err != nil {
		fmt.Printf("Failed to save image: %s\n", err)
		os.Exit(1)
	}

	dst, err := disc.Open(out, logger)
	if err != nil {
		fmt.Printf("Failed to reopen saved image: %s\n", err)
		os.Exit(1)
	}
	defer dst.Close()

	// Verify that the saved image carries the same data as the input image
	if err := compare(src, dst); err != nil {
		fmt.Printf("Saved image does not match the input image: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("Saved image matches the input image")
}
