package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:          "0 B",
		512:        "512 B",
		1024:       "1.0 KiB",
		1536:       "1.5 KiB",
		1 << 20:    "1.0 MiB",
		1 << 30:    "1.0 GiB",
		5 << 40:    "5.0 TiB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBytes(in), "input %d", in)
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0 B/s", FormatRate(0))
	assert.Equal(t, "0 B/s", FormatRate(-5))
	assert.Equal(t, "1.0 KiB/s", FormatRate(1024))
}
