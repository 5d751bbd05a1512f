package fsmode

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitsRoundTrip(t *testing.T) {
	t.Parallel()

	// Every subset of the nine permission bits survives the round trip.
	for bits := int64(0); bits <= 0o777; bits++ {
		perm := FromBits(bits)
		assert.Equal(t, bits, ToBits(perm), "bits %04o", bits)
	}
}

func TestToBits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		perm fs.FileMode
		want int64
	}{
		{
			name: "regular file",
			perm: 0o644,
			want: 0o644,
		},
		{
			name: "executable",
			perm: 0o755,
			want: 0o755,
		},
		{
			name: "no permissions",
			perm: 0,
			want: 0,
		},
		{
			name: "type bits dropped",
			perm: fs.ModeDir | 0o700,
			want: 0o700,
		},
		{
			name: "setuid dropped",
			perm: fs.ModeSetuid | 0o755,
			want: 0o755,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ToBits(tt.perm))
		})
	}
}

func TestFromBits_IgnoresHighBits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fs.FileMode(0o644), FromBits(0o644|0o10000))
}
