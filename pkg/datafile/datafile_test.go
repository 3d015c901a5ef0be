package datafile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func TestResolve(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/images/game.cue":     "",
		"/images/game.bin":     "data",
		"/images/Track 02.BIN": "audio",
		"/other/abs.bin":       "abs",
	})
	r := NewResolver(fs, "/images/game.cue", false, nil)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "relative", ref: "game.bin", want: "/images/game.bin"},
		{name: "absolute", ref: "/other/abs.bin", want: "/other/abs.bin"},
		{name: "windows path", ref: `C:\rips\game.bin`, want: "/images/game.bin"},
		{name: "case", ref: "track 02.bin", want: "/images/Track 02.BIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			require.NoError(t, err)
			require.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}

	_, err := r.Resolve("missing.bin")
	require.True(t, errors.Is(err, imgerr.MissingDataFile))
	require.False(t, r.Exists(""))
}

func TestOpenAndSet(t *testing.T) {
	fs := memFs(t, map[string]string{"/d/disc.img": "0123456789"})
	s := NewSet(NewResolver(fs, "/d/disc.ccd", false, nil))

	f, err := s.Add("disc.img")
	require.NoError(t, err)
	require.Equal(t, int64(10), f.Size())

	again, err := s.Add("disc.img")
	require.NoError(t, err)
	require.Same(t, f, again)

	buf := make([]byte, 3)
	n, err := f.ReadAt(buf, 4)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "456", string(buf))

	got, ok := s.Get("disc.img")
	require.True(t, ok)
	require.Same(t, f, got)

	_, err = s.Add("disc.sub")
	require.True(t, errors.Is(err, imgerr.MissingDataFile))

	require.NoError(t, s.Close())
	_, ok = s.Get("disc.img")
	require.False(t, ok)
}

func TestMemoryMapOnOsFs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "disc.bin"), []byte("mapped"), 0o644))
	r := NewResolver(afero.NewOsFs(), filepath.Join(dir, "disc.cue"), true, nil)
	f, err := r.Open("disc.bin")
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(6), f.Size())
	require.Equal(t, filepath.Join(dir, "disc.bin"), f.Name())

	buf := make([]byte, 6)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "mapped", string(buf))
}

func TestReadFile(t *testing.T) {
	fs := memFs(t, map[string]string{"/d/cdtext.cdt": "text"})
	b, err := NewResolver(fs, "/d/x.cue", false, nil).ReadFile("CDTEXT.CDT")
	require.NoError(t, err)
	require.Equal(t, "text", string(b))
}
