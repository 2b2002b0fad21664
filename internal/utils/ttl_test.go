package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0s", 0},
		{"45s", 45 * time.Second},
		{"60m", time.Hour},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"-1m", -time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTTL_Invalid(t *testing.T) {
	for _, in := range []string{"", "s", "5", "5w", "5 m", "m5", "1.5h", "99999999999999999d", "+1h"} {
		_, err := ParseTTL(in)
		assert.ErrorIs(t, err, ErrInvalidTTL, "input %q", in)
	}
}
