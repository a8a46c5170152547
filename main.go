package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"TinySum/sidecar"
)

const usage = "usage: tinysum <hash|record|verify|scan|check> [flags] <path|->"

// exit codes
const (
	exitOK = iota
	exitError
	exitMismatch
)

var (
	errUsage    = errors.New("usage error")
	errMismatch = errors.New("digest mismatch")
)

// readBufSize bounds the memory used to stream one input.
const readBufSize = 1 << 16

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	hasher engine
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	err := a.dispatch(ctx, args)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errMismatch):
		return exitMismatch
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "error: %v\n%s\n", err, usage)
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitError
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command: %w", errUsage)
	}

	opts := defaultOptions()
	fs := newFlagSet(args[0], &opts)

	var cmd func(context.Context, options, []string) error
	switch args[0] {
	case "hash":
		cmd = a.hash
	case "record":
		cmd = a.record
	case "verify":
		cmd = a.verify
	case "scan":
		cmd = a.newScan(fs, &opts)
	case "check":
		cmd = a.newCheck(fs, &opts)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	if err := parseFlags(fs, &opts, args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s needs exactly one path: %w", args[0], errUsage)
	}

	a.log = newLogger(a.stderr, opts.Debug)
	hasher, name, err := selectEngine(opts.Engine)
	if err != nil {
		return err
	}
	a.hasher = hasher
	a.log.Debug("engine selected", "engine", name, "sha_extensions", hasSHAExtensions)

	return cmd(ctx, opts, fs.Args())
}

func displayName(path string) string {
	if path == "-" {
		return "-"
	}
	return filepath.Base(path)
}

func (a *app) hash(_ context.Context, _ options, args []string) error {
	path := args[0]
	sum, err := a.hashPath(path)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, sidecar.Format(sidecar.Record{Digest: sum, Name: displayName(path)}))
	return err
}

func (a *app) record(_ context.Context, _ options, args []string) error {
	path := args[0]
	sum, err := a.hashPath(path)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = io.WriteString(a.stdout, sidecar.Format(sidecar.Record{Digest: sum, Name: "-"}))
		return err
	}

	if err := sidecar.Write(path, sum); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "wrote: %s\n", displayName(sidecar.Path(path)))
	return err
}

func (a *app) verify(_ context.Context, _ options, args []string) error {
	path := args[0]
	if path == "-" {
		return fmt.Errorf("verify needs a file with a %s sidecar: %w", sidecar.Ext, errUsage)
	}

	rec, err := sidecar.Read(path)
	if err != nil {
		return err
	}
	actual, err := a.hashPath(path)
	if err != nil {
		return err
	}

	if actual == rec.Digest {
		_, err = fmt.Fprintf(a.stdout, "OK  %s\n", path)
		return err
	}
	fmt.Fprintf(a.stdout, "MISMATCH  %s\n", path)
	fmt.Fprintf(a.stderr, "expected: %s\nactual:   %s\n", rec.Digest, actual)
	return errMismatch
}

// hashPath digests the named file, or standard input for "-".
func (a *app) hashPath(path string) (string, error) {
	if path == "-" {
		return a.hashReader(a.stdin, path)
	}
	return a.hashFile(path)
}

func (a *app) hashFile(path string) (sum string, retErr error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return "", fmt.Errorf("open failed: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return a.hashReader(f, path)
}

func (a *app) hashReader(r io.Reader, name string) (string, error) {
	start := time.Now()
	h := a.hasher()
	n, err := io.CopyBuffer(h, r, make([]byte, readBufSize))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	a.log.Debug("hashed", "path", name, "bytes", n, "elapsed", time.Since(start))
	return sum, nil
}
