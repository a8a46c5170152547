package sidecar

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ext is appended to a file path to name its sidecar.
const Ext = ".sha256"

// DigestLen is the length of a hex encoded digest.
const DigestLen = 64

var (
	ErrMissing       = errors.New("missing sidecar " + Ext)
	ErrEmpty         = errors.New("cannot read " + Ext)
	ErrMalformed     = errors.New("invalid " + Ext + " format")
	ErrInvalidDigest = errors.New("invalid hash (need 64 hex chars)")
)

// Record is one digest line.
type Record struct {
	Digest string
	Name   string
}

// Path returns the sidecar path for path.
func Path(path string) string { return path + Ext }

// Format renders r as a newline terminated line.
func Format(r Record) string {
	return r.Digest + "  " + r.Name + "\n"
}

// ParseDigest lowercases s and checks that it is a hex digest.
func ParseDigest(s string) (string, error) {
	if len(s) != DigestLen {
		return "", fmt.Errorf("%w: got %d chars", ErrInvalidDigest, len(s))
	}
	s = strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: bad char %q", ErrInvalidDigest, c)
		}
	}
	return s, nil
}

// Parse splits a record line at its first space or tab.
func Parse(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return Record{}, ErrMalformed
	}

	digest, err := ParseDigest(line[:i])
	if err != nil {
		return Record{}, err
	}

	name := strings.TrimLeft(line[i:], " \t")
	name = strings.TrimPrefix(name, "*")

	return Record{Digest: digest, Name: name}, nil
}

// Read parses the first line of the sidecar belonging to path.
func Read(path string) (rec Record, retErr error) {
	const errCtx = "reading sidecar"

	f, err := os.Open(Path(path)) //nolint:gosec // path is caller-provided
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("%s: %w", errCtx, ErrMissing)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Record{}, fmt.Errorf("%s: %w", errCtx, err)
		}
		return Record{}, fmt.Errorf("%s: %w", errCtx, ErrEmpty)
	}

	rec, err = Parse(sc.Text())
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", errCtx, err)
	}
	return rec, nil
}

// Write stores digest in the sidecar of path, naming the file by its base name.
func Write(path, digest string) error {
	const errCtx = "writing sidecar"

	line := Format(Record{Digest: digest, Name: filepath.Base(path)})
	if err := os.WriteFile(Path(path), []byte(line), 0o644); err != nil { //nolint:gosec // sidecars are public
		return fmt.Errorf("%s: %w", errCtx, err)
	}
	return nil
}
