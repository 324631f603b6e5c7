package session

import (
	"encoding/binary"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MAX_RAW_COUNTER = 1000000 // largest plausible little-endian counter value

var (
	ErrEmptyValue  = errors.New("counter value is empty")
	ErrNotNumeric  = errors.New("counter value is not numeric")
	numericPattern = regexp.MustCompile(`[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
)

// ParseValue reads a device characteristic value. Firmware sends either
// text such as "12" or "0.65 m/s", possibly NUL padded, or a little-endian
// integer. Bytes that happen to be printable but hold no number are read as
// an integer.
func ParseValue(raw []byte) (float64, error) {
	if len(raw) == 0 {
		return 0, ErrEmptyValue
	}

	if text, ok := printable(raw); ok {
		if m := numericPattern.FindString(text); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil && !math.IsInf(v, 0) {
				return v, nil
			}
		}
	}

	switch {
	case len(raw) == 1:
		return float64(raw[0]), nil
	case len(raw) < 4:
		return float64(binary.LittleEndian.Uint16(raw)), nil
	default:
		if v := binary.LittleEndian.Uint32(raw); v <= MAX_RAW_COUNTER {
			return float64(v), nil
		}
	}
	return 0, ErrNotNumeric
}

// printable returns the trimmed text of raw when it is readable text.
func printable(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\x00", ""))
	if text == "" {
		return "", false
	}
	for _, r := range text {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return text, true
}

// setKey normalizes a set counter value to the integer the device counts.
func setKey(v float64) int {
	return int(math.Trunc(v))
}
