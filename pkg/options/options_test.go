package options

import (
	"strings"
	"testing"

	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/verify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := New()
	require.Equal(t, FORMAT_UNKNOWN, o.Format)
	require.IsType(t, &afero.OsFs{}, o.Fs)
	require.Equal(t, verify.CDChecker{}, o.Checker)
	require.NotNil(t, o.Log())
	o.Progress("convert", 1, 2)
}

func TestOptions(t *testing.T) {
	fs := afero.NewMemMapFs()
	var calls int
	checker := verify.CheckerFunc(func([]byte) verify.Status { return verify.STATUS_BAD })
	o := New(
		WithFormat(FORMAT_NERO),
		WithFs(fs),
		WithMemoryMap(true),
		WithChecker(checker),
		WithMediaType(media.TYPE_CDR),
		WithSectors(300),
		WithProgress(func(stage string, current, total uint64) {
			require.Equal(t, "verify", stage)
			require.Equal(t, uint64(3), current)
			require.Equal(t, uint64(9), total)
			calls++
		}),
	)
	require.Equal(t, FORMAT_NERO, o.Format)
	require.Same(t, fs, o.Fs)
	require.True(t, o.MemoryMap)
	require.Equal(t, verify.STATUS_BAD, o.Checker.Check(nil))
	require.Equal(t, media.TYPE_CDR, o.MediaType)
	require.Equal(t, uint64(300), o.Sectors)
	o.Progress("verify", 3, 9)
	require.Equal(t, 1, calls)
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		name string
		want Format
		ok   bool
	}{
		{"alcohol", FORMAT_ALCOHOL, true},
		{"NERO", FORMAT_NERO, true},
		{"CloneCD", FORMAT_CLONECD, true},
		{"cdrwin", FORMAT_CDRWIN, true},
		{"cdrdao", FORMAT_CDRDAO, true},
		{"iso", FORMAT_UNKNOWN, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFormat(tc.name)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, f)
			require.Equal(t, strings.ToLower(tc.name), f.String())
		})
	}
}
