package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"TinySum/sidecar"
)

func (a *app) newScan(fs *flag.FlagSet, o *options) func(context.Context, options, []string) error {
	out := fs.String("out", "hashes"+sidecar.Ext, "hash list to append to")
	fs.BoolVar(&o.Progress, "progress", o.Progress, "show progress updates")

	return func(ctx context.Context, opts options, args []string) error {
		return a.generateChecksums(ctx, opts, args[0], *out)
	}
}

func (a *app) newCheck(fs *flag.FlagSet, o *options) func(context.Context, options, []string) error {
	list := fs.String("list", "hashes"+sidecar.Ext, "hash list to verify against")
	verbose := fs.Bool("verbose", false, "report every entry, not only failures")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	fs.BoolVar(&o.Progress, "progress", o.Progress, "show progress updates")

	return func(ctx context.Context, opts options, args []string) error {
		return a.verifyChecksums(ctx, opts, args[0], *list, *verbose, *asJSON)
	}
}

// generateChecksums appends a record for every regular file under dir that
// the output list does not mention yet. Names are stored relative to dir.
func (a *app) generateChecksums(ctx context.Context, opts options, dir, output string) (retErr error) {
	processed := map[string]bool{}
	recs, err := sidecar.ReadList(output)
	switch {
	case err == nil:
		for _, r := range recs {
			processed[r.Name] = true
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	outAbs, err := filepath.Abs(output)
	if err != nil {
		return err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasSuffix(path, sidecar.Ext) {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == outAbs {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if !processed[filepath.ToSlash(rel)] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.log.Debug("scan", "dir", dir, "pending", len(paths), "already_listed", len(processed))

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // path is caller-provided
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()

	var (
		mu             sync.Mutex
		processedCount atomic.Int64
		failed         atomic.Int64
	)
	stopProgress := a.startProgress(opts.Progress, len(paths), &processedCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer processedCount.Add(1)

			hash, err := a.hashFile(path)
			if err != nil {
				a.log.Warn("hash failed", "path", path, "err", err)
				failed.Add(1)
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			line := sidecar.Format(sidecar.Record{Digest: hash, Name: filepath.ToSlash(rel)})

			mu.Lock()
			defer mu.Unlock()
			if _, err := file.WriteString(line); err != nil {
				return fmt.Errorf("append %s: %w", output, err)
			}
			return file.Sync()
		})
	}
	err = g.Wait()
	stopProgress()

	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files could not be hashed", n, len(paths))
	}
	return nil
}

type checkResult struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

type checkReport struct {
	Total    int           `json:"total"`
	Match    int           `json:"match"`
	Mismatch int           `json:"mismatch"`
	Results  []checkResult `json:"results"`
}

// verifyChecksums re-hashes every list entry below dir. Relative entries, as
// written by scan, are joined to dir directly. Lists holding absolute paths
// have their common directory prefix dropped instead, so a list written on
// one machine can be checked against a copy elsewhere.
func (a *app) verifyChecksums(ctx context.Context, opts options, dir, listfile string, verbose, asJSON bool) error {
	recs, err := sidecar.ReadList(listfile)
	if err != nil {
		return err
	}

	prefix := absolutePrefix(recs)

	total := len(recs)
	results := make([]checkResult, total)
	var processedCount atomic.Int64
	stopProgress := a.startProgress(opts.Progress, total, &processedCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, rec := range recs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer processedCount.Add(1)

			path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(rec.Name, prefix)))
			r := checkResult{Path: path}
			hash, err := a.hashFile(path)
			switch {
			case err != nil:
				r.Status = err.Error()
			case hash != rec.Digest:
				r.Status = "MISMATCH"
			default:
				r.Status = "OK"
				r.OK = true
			}
			results[i] = r
			return nil
		})
	}
	err = g.Wait()
	stopProgress()

	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	report := checkReport{Total: total, Results: []checkResult{}}
	for _, r := range results {
		if r.OK {
			report.Match++
		} else {
			report.Mismatch++
		}
		if verbose || !r.OK {
			report.Results = append(report.Results, r)
		}
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else if err := a.printReport(report, verbose); err != nil {
		return err
	}

	if report.Mismatch > 0 {
		return errMismatch
	}
	return nil
}

func (a *app) printReport(report checkReport, verbose bool) error {
	for _, r := range report.Results {
		if _, err := fmt.Fprintf(a.stdout, "%s %s\n", r.Path, r.Status); err != nil {
			return err
		}
	}
	if !verbose && report.Mismatch == 0 {
		fmt.Fprintln(a.stdout, "All files match")
	}
	_, err := fmt.Fprintf(a.stdout, "Total:%d Match:%d Mismatch:%d\n", report.Total, report.Match, report.Mismatch)
	return err
}

// startProgress prints done/total once a second until the returned func is
// called, which prints the final count.
func (a *app) startProgress(enabled bool, total int, done *atomic.Int64) func() {
	if !enabled || total == 0 {
		return func() {}
	}

	ticker := time.NewTicker(time.Second)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				printProgress(a.stderr, done.Load(), total)
			case <-quit:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(quit)
		wg.Wait()
		printProgress(a.stderr, done.Load(), total)
	}
}

func printProgress(w io.Writer, done int64, total int) {
	fmt.Fprintf(w, "%d/%d\n", done, total)
}

// absolutePrefix normalises separators in recs and returns the directory
// prefix shared by all entries when any of them is absolute, or "" when the
// list is relative.
func absolutePrefix(recs []sidecar.Record) string {
	absolute := false
	for i := range recs {
		recs[i].Name = strings.ReplaceAll(recs[i].Name, "\\", "/")
		if isAbsName(recs[i].Name) {
			absolute = true
		}
	}
	if !absolute || len(recs) == 0 {
		return ""
	}

	prefix := recs[0].Name
	for _, r := range recs[1:] {
		prefix = commonPrefix(prefix, r.Name)
	}
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		return prefix[:i+1]
	}
	return ""
}

// isAbsName reports whether a slash separated list name is rooted, either
// Unix style or with a drive letter.
func isAbsName(name string) bool {
	if strings.HasPrefix(name, "/") {
		return true
	}
	return len(name) >= 3 && name[1] == ':' && name[2] == '/'
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
