package datafile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/spf13/afero"
	"golang.org/x/exp/mmap"
)

// File is an open data file read with positioned reads.
type File interface {
	io.ReaderAt
	io.Closer
	Size() int64
	Name() string
}

// Resolver finds and opens the files a descriptor refers to.
type Resolver struct {
	Fs        afero.Fs
	Dir       string
	MemoryMap bool
	log       *logging.Logger
}

// NewResolver returns a Resolver for files referenced by the descriptor at path.
func NewResolver(fs afero.Fs, descriptor string, memoryMap bool, log *logging.Logger) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Resolver{Fs: fs, Dir: filepath.Dir(descriptor), MemoryMap: memoryMap, log: log}
}

func (r *Resolver) exists(p string) bool {
	fi, err := r.Fs.Stat(p)
	return err == nil && !fi.IsDir()
}

// Resolve returns the path of a referenced file. Names are tried as given, relative to the
// descriptor directory, by base name and finally by a case-insensitive directory match.
func (r *Resolver) Resolve(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" {
		return "", imgerr.New(imgerr.MissingDataFile, "resolve", "empty file name")
	}
	base := filepath.Base(name)
	candidates := []string{filepath.Join(r.Dir, base)}
	if filepath.IsAbs(name) {
		candidates = append([]string{name}, candidates...)
	} else {
		candidates = append([]string{filepath.Join(r.Dir, name)}, candidates...)
	}
	for _, c := range candidates {
		if r.exists(c) {
			r.log.Trace("resolved data file", "name", name, "path", c)
			return c, nil
		}
	}

	entries, err := afero.ReadDir(r.Fs, r.Dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(e.Name(), base) {
				p := filepath.Join(r.Dir, e.Name())
				r.log.Debug("resolved data file ignoring case", "name", name, "path", p)
				return p, nil
			}
		}
	}
	return "", imgerr.New(imgerr.MissingDataFile, "resolve", "%s not found next to the descriptor in %s", name, r.Dir)
}

// Exists reports whether name resolves.
func (r *Resolver) Exists(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

// Open resolves and opens name.
func (r *Resolver) Open(name string) (File, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if r.MemoryMap {
		if _, ok := r.Fs.(*afero.OsFs); ok {
			m, err := mmap.Open(p)
			if err == nil {
				r.log.Debug("memory mapped data file", "path", p, "size", m.Len())
				return &mappedFile{ReaderAt: m, name: p}, nil
			}
			r.log.Debug("memory mapping failed, falling back to reads", "path", p, "error", err.Error())
		}
	}
	f, err := r.Fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, imgerr.Wrap(imgerr.MissingDataFile, "open", err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return &fsFile{File: f, size: fi.Size()}, nil
}

// ReadFile resolves name and returns its whole contents.
func (r *Resolver) ReadFile(name string) ([]byte, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(r.Fs, p)
}

type fsFile struct {
	afero.File
	size int64
}

func (f *fsFile) Size() int64 {
	return f.size
}

type mappedFile struct {
	*mmap.ReaderAt
	name string
}

func (m *mappedFile) Size() int64 {
	return int64(m.Len())
}

func (m *mappedFile) Name() string {
	return m.name
}

// Set holds the open data files of one image by the name the descriptor uses. It is filled
// while the image is opened and read-only afterwards.
type Set struct {
	resolver *Resolver
	files    map[string]File
}

// NewSet returns an empty Set opening files through r.
func NewSet(r *Resolver) *Set {
	return &Set{resolver: r, files: map[string]File{}}
}

// Add opens name unless it is already open.
func (s *Set) Add(name string) (File, error) {
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	f, err := s.resolver.Open(name)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// Get returns an open file.
func (s *Set) Get(name string) (File, bool) {
	f, ok := s.files[name]
	return f, ok
}

// Close closes every file, returning the first error.
func (s *Set) Close() error {
	var first error
	for name, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.files, name)
	}
	return first
}
