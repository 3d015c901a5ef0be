package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/usage"
)

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("discview"),
		usage.WithApplicationDescription("discview prints the sessions, tracks and index points of an optical disc image."),
	)
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print index points, data files and debug output", "", nil)
	useColor := u.AddBooleanOption("c", "color", true, "Use colored output", "", nil)
	hex := u.AddBooleanOption("x", "hex", false, "Print sector addresses in hexadecimal", "", nil)
	asJSON := u.AddBooleanOption("j", "json", false, "Print the layout as JSON", "", nil)
	asYAML := u.AddBooleanOption("y", "yaml", false, "Print the layout as YAML", "", nil)
	path := u.AddArgument(1, "image-path", "Path to the image descriptor (.mds, .nrg, .ccd, .cue or .toc)", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("location of the image <image-path> must be provided"))
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *verbose {
		level = logging.LEVEL_DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, *useColor)

	img, err := disc.Open(*path, options.WithLogger(logger))
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer img.Close()

	l := img.Layout()
	switch {
	case *asJSON:
		fmt.Println(l.PrettyJSON())
	case *asYAML:
		fmt.Print(l.YAML())
	default:
		l.Print(os.Stdout, *verbose, *useColor, *hex)
	}
}
