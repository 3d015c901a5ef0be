package options

import (
	"fmt"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/verify"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// Format identifies a supported image format.
type Format int

const (
	FORMAT_UNKNOWN Format = iota
	FORMAT_ALCOHOL
	FORMAT_NERO
	FORMAT_CLONECD
	FORMAT_CDRWIN
	FORMAT_CDRDAO
)

func (f Format) String() string {
	switch f {
	case FORMAT_ALCOHOL:
		return "alcohol"
	case FORMAT_NERO:
		return "nero"
	case FORMAT_CLONECD:
		return "clonecd"
	case FORMAT_CDRWIN:
		return "cdrwin"
	case FORMAT_CDRDAO:
		return "cdrdao"
	default:
		return "unknown"
	}
}

// ParseFormat looks a format up by name.
func ParseFormat(name string) (Format, error) {
	for f := FORMAT_ALCOHOL; f <= FORMAT_CDRDAO; f++ {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return FORMAT_UNKNOWN, fmt.Errorf("unknown image format %q", name)
}

// ProgressCallback receives progress of long operations such as conversion, extraction and
// verification of a range.
type ProgressCallback func(
	stage string,
	current uint64,
	total uint64,
)

// Options holds the settings for opening and creating images.
type Options struct {
	Format           Format
	Fs               afero.Fs
	MemoryMap        bool
	Checker          verify.Checker
	MediaType        media.Type
	Sectors          uint64
	Logger           logr.Logger
	ProgressCallback ProgressCallback
}

// Option represents a function that modifies the Options
type Option func(*Options)

// New applies opts over the defaults.
func New(opts ...Option) *Options {
	o := &Options{
		Fs:      afero.NewOsFs(),
		Checker: verify.CDChecker{},
		Logger:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Log returns the configured logger wrapped for the library.
func (o *Options) Log() *logging.Logger {
	return logging.NewLogger(o.Logger)
}

// Progress calls the progress callback when one is set.
func (o *Options) Progress(stage string, current, total uint64) {
	if o.ProgressCallback != nil {
		o.ProgressCallback(stage, current, total)
	}
}

// WithFormat skips format detection and opens the image as the given format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithFs sets the filesystem descriptors and data files are read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(o *Options) {
		o.Fs = fs
	}
}

// WithMemoryMap memory maps data files when they live on the OS filesystem.
func WithMemoryMap(enabled bool) Option {
	return func(o *Options) {
		o.MemoryMap = enabled
	}
}

// WithChecker replaces the sector checker used by verification.
func WithChecker(checker verify.Checker) Option {
	return func(o *Options) {
		o.Checker = checker
	}
}

// WithMediaType overrides the media type reported for the image, or sets it for a new one.
func WithMediaType(mediaType media.Type) Option {
	return func(o *Options) {
		o.MediaType = mediaType
	}
}

// WithSectors sets the expected number of sectors of an image being created.
func WithSectors(sectors uint64) Option {
	return func(o *Options) {
		o.Sectors = sectors
	}
}

// WithProgress sets a progress callback function that will be called with progress updates.
// Parameters:
// - stage: What is being done, e.g. "convert" or "verify".
// - current: Number of sectors processed so far.
// - total: Number of sectors to process.
func WithProgress(callback ProgressCallback) Option {
	return func(o *Options) {
		o.ProgressCallback = callback
	}
}

// WithLogger sets the Logger for the image
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
