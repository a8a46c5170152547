package sidecar

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadList parses every non-blank line of a hash list.
func ReadList(path string) (recs []Record, retErr error) {
	const errCtx = "reading hash list"

	f, err := os.Open(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	recs, err = ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}
	return recs, nil
}

// ParseList parses records from r, one per line.
func ParseList(r io.Reader) ([]Record, error) {
	var recs []Record

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
