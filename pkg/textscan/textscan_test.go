package textscan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "plain", input: "TRACK 01 MODE1/2352", want: []string{"TRACK", "01", "MODE1/2352"}},
		{name: "quoted with spaces", input: `FILE "my disc.bin" BINARY`, want: []string{"FILE", "my disc.bin", "BINARY"}},
		{name: "escaped quote", input: `TITLE "say \"hi\""`, want: []string{"TITLE", `say "hi"`}},
		{name: "braces", input: "CD_TEXT {LANGUAGE 0 {", want: []string{"CD_TEXT", "{", "LANGUAGE", "0", "{"}},
		{name: "empty string", input: `TITLE ""`, want: []string{"TITLE", ""}},
		{name: "tabs", input: "INDEX\t01\t00:00:00", want: []string{"INDEX", "01", "00:00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input, true)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := Tokenize(`TITLE "open`, true)
	require.Error(t, err)

	got, err := Tokenize(`FILE "C:\disc\track.bin" BINARY`, false)
	require.NoError(t, err)
	require.Equal(t, []string{"FILE", `C:\disc\track.bin`, "BINARY"}, got)
}

func TestLines(t *testing.T) {
	data := []byte("\xEF\xBB\xBFCD_ROM\r\n\r\n// header comment\nTRACK MODE1 // trailing\nTITLE \"a // b\"\n")
	lines, err := Lines(data, Syntax{Comment: "//", Escapes: true})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, "CD_ROM", lines[0].Keyword())
	require.Equal(t, 1, lines[0].Number)
	require.Equal(t, []string{"TRACK", "MODE1"}, lines[1].Tokens)
	require.Equal(t, 4, lines[1].Number)
	require.Equal(t, []string{"a // b"}, lines[2].Args())
}

func TestLinesLatin1(t *testing.T) {
	lines, err := Lines([]byte("TITLE \"Caf\xE9\"\n"), Syntax{})
	require.NoError(t, err)
	require.Equal(t, "Café", lines[0].Tokens[1])
}

func TestINI(t *testing.T) {
	data := []byte("[CloneCD]\r\nVersion=3\r\n; comment\r\n\r\n[Entry 0]\r\nPoint = 0xa0\r\ngarbage\r\n")
	entries, err := INI(data)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, ENTRY_SECTION, entries[0].Kind)
	require.Equal(t, "CloneCD", entries[0].Section)
	require.Equal(t, ENTRY_KEY_VALUE, entries[1].Kind)
	require.Equal(t, "Version", entries[1].Key)
	require.Equal(t, "3", entries[1].Value)
	require.Equal(t, "Entry 0", entries[2].Section)
	require.Equal(t, "0xa0", entries[3].Value)
	require.Equal(t, ENTRY_OTHER, entries[4].Kind)
	require.Equal(t, 7, entries[4].Number)
}

func TestLooksLikeText(t *testing.T) {
	require.True(t, LooksLikeText([]byte("FILE \"a.bin\" BINARY\r\n")))
	require.True(t, LooksLikeText([]byte("TITLE \"Caf\xE9\"")))
	require.False(t, LooksLikeText([]byte("MEDIA DESCRIPTOR\x01\x05")))
	require.False(t, LooksLikeText([]byte{0xFF, 0xFE, 'A', 0}))
	require.False(t, LooksLikeText(nil))
}
