package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  []byte
		want float64
	}{
		{[]byte("12"), 12},
		{[]byte("3\x00\x00"), 3},
		{[]byte("  0.65 m/s "), 0.65},
		{[]byte("-4.5e1"), -45},
		{[]byte("set .5"), 0.5},
		{[]byte{0x07}, 7},
		{[]byte{0x00}, 0},
		{[]byte{0x2c, 0x01}, 300},
		{[]byte{0x10, 0x27, 0x00, 0x00}, 10000},
		{[]byte("A"), 65},
		{[]byte("AB"), 0x4241},
		{[]byte{0x2a, 0x00}, 42},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.raw)
		if assert.NoError(t, err, "%q", tt.raw) {
			assert.Equal(t, tt.want, got, "%q", tt.raw)
		}
	}
}

func TestParseValueErrors(t *testing.T) {
	_, err := ParseValue(nil)
	assert.ErrorIs(t, err, ErrEmptyValue)
	_, err = ParseValue([]byte("idle"))
	assert.ErrorIs(t, err, ErrNotNumeric)
	_, err = ParseValue([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestSetKey(t *testing.T) {
	assert.Equal(t, 3, setKey(3))
	assert.Equal(t, 3, setKey(3.9))
	assert.Equal(t, -1, setKey(-1.2))
}
