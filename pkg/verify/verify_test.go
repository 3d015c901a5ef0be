package verify_test

import (
	"testing"

	dtest "github.com/bgrewell/disc-kit/internal/testing"
	"github.com/bgrewell/disc-kit/pkg/verify"
	"github.com/stretchr/testify/require"
)

func TestEDCKnownValues(t *testing.T) {
	require.Equal(t, uint32(0), verify.EDC(nil))
	// The table is a reflected CRC, so a single 0x01 byte maps to table entry 1.
	require.NotZero(t, verify.EDC([]byte{1}))
	require.NotEqual(t, verify.EDC([]byte{1, 2}), verify.EDC([]byte{2, 1}))
}

func TestCDChecker(t *testing.T) {
	c := verify.CDChecker{}
	tests := []struct {
		name   string
		sector func() []byte
		want   verify.Status
	}{
		{name: "mode 1", sector: func() []byte { return dtest.Mode1Sector(16, dtest.Fill(2048, 7)) }, want: verify.STATUS_GOOD},
		{name: "form 1", sector: func() []byte { return dtest.Form1Sector(16, dtest.Fill(2048, 9)) }, want: verify.STATUS_GOOD},
		{name: "form 2", sector: func() []byte { return dtest.Form2Sector(16, dtest.Fill(2324, 3)) }, want: verify.STATUS_GOOD},
		{
			name: "mode 1 corrupted data",
			sector: func() []byte {
				s := dtest.Mode1Sector(16, dtest.Fill(2048, 7))
				s[100] ^= 0xFF
				return s
			},
			want: verify.STATUS_BAD,
		},
		{
			name: "mode 1 corrupted ecc",
			sector: func() []byte {
				s := dtest.Mode1Sector(16, dtest.Fill(2048, 7))
				s[2300] ^= 0x01
				return s
			},
			want: verify.STATUS_BAD,
		},
		{
			name: "form 1 header is not covered by ecc",
			sector: func() []byte {
				s := dtest.Form1Sector(16, dtest.Fill(2048, 9))
				s[12] = 0x99
				return s
			},
			want: verify.STATUS_GOOD,
		},
		{
			name: "form 2 corrupted",
			sector: func() []byte {
				s := dtest.Form2Sector(16, dtest.Fill(2324, 3))
				s[40] ^= 0x10
				return s
			},
			want: verify.STATUS_BAD,
		},
		{
			name: "form 2 without edc",
			sector: func() []byte {
				s := dtest.Form2Sector(16, dtest.Fill(2324, 3))
				copy(s[2348:], []byte{0, 0, 0, 0})
				return s
			},
			want: verify.STATUS_UNKNOWN,
		},
		{name: "audio", sector: func() []byte { return dtest.AudioSector(1) }, want: verify.STATUS_UNKNOWN},
		{name: "cooked", sector: func() []byte { return make([]byte, 2048) }, want: verify.STATUS_UNKNOWN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Check(tt.sector()))
		})
	}
}

func TestReportPrecedence(t *testing.T) {
	r := &verify.Report{}
	r.Add(1, verify.STATUS_GOOD)
	require.Equal(t, verify.STATUS_GOOD, r.Finish().Status)

	r.Add(2, verify.STATUS_BAD)
	require.Equal(t, verify.STATUS_BAD, r.Finish().Status)
	require.Equal(t, []uint64{2}, r.Failing)

	r.Add(3, verify.STATUS_UNKNOWN)
	require.Equal(t, verify.STATUS_UNKNOWN, r.Finish().Status)
	require.Equal(t, []uint64{3}, r.Unknown)

	other := &verify.Report{Failing: []uint64{9}}
	r.Merge(other)
	require.Equal(t, []uint64{2, 9}, r.Failing)
}

func TestCheckerFunc(t *testing.T) {
	var c verify.Checker = verify.CheckerFunc(func([]byte) verify.Status { return verify.STATUS_BAD })
	require.Equal(t, verify.STATUS_BAD, c.Check(nil))
	require.Equal(t, "bad", verify.STATUS_BAD.String())
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		encode func(int64, []byte) ([]byte, error)
		size   int
		offset int
		want   verify.Status
	}{
		{name: "mode 1", encode: verify.EncodeMode1, size: 2048, offset: 16, want: verify.STATUS_GOOD},
		{name: "form 1", encode: verify.EncodeForm1, size: 2048, offset: 24, want: verify.STATUS_GOOD},
		{name: "form 2", encode: verify.EncodeForm2, size: 2324, offset: 24, want: verify.STATUS_GOOD},
		{name: "mode 2", encode: verify.EncodeMode2, size: 2336, offset: 16, want: verify.STATUS_BAD},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := dtest.Fill(tc.size, 5)
			raw, err := tc.encode(200, data)
			require.NoError(t, err)
			require.Len(t, raw, 2352)
			require.Equal(t, []byte{0x00, 0x04, 0x50}, raw[12:15])
			require.Equal(t, data, raw[tc.offset:tc.offset+tc.size])
			require.Equal(t, tc.want, verify.CDChecker{}.Check(raw))

			_, err = tc.encode(200, make([]byte, tc.size+1))
			require.Error(t, err)
		})
	}
}
