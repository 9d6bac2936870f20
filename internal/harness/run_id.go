package harness

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const runIDSuffixBytes = 6

const runIDTimeLayout = "20060102T150405Z"

// NewRunID returns a sortable run id for the current time.
func NewRunID() (string, error) {
	return NewRunIDWithRand(time.Now().UTC(), rand.Reader)
}

func NewRunIDWithRand(now time.Time, r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("random reader is nil")
	}
	buf := make([]byte, runIDSuffixBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return FormatRunID(now, hex.EncodeToString(buf)), nil
}

func FormatRunID(now time.Time, suffix string) string {
	return now.UTC().Format(runIDTimeLayout) + "-" + suffix
}

// RunIDTime parses the timestamp prefix of a run id.
func RunIDTime(runID string) (time.Time, error) {
	if len(runID) < len(runIDTimeLayout) {
		return time.Time{}, fmt.Errorf("run id %q is too short", runID)
	}
	return time.Parse(runIDTimeLayout, runID[:len(runIDTimeLayout)])
}
