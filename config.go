package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/goccy/go-yaml"
)

// options shared by every command. A YAML file named by -config fills in
// whatever was not given on the command line.
type options struct {
	Engine   string `yaml:"engine"`
	Workers  int    `yaml:"workers"`
	Progress bool   `yaml:"progress"`
	Debug    bool   `yaml:"debug"`

	config string
}

func defaultOptions() options {
	return options{Engine: "native", Workers: runtime.NumCPU()}
}

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.Engine, "engine", o.Engine, "hash engine: native, simd or auto")
	fs.IntVar(&o.Workers, "workers", o.Workers, "parallel hashing workers for scan and check")
	fs.BoolVar(&o.Debug, "v", o.Debug, "debug logging on stderr")
	fs.StringVar(&o.config, "config", "", "YAML config file")
	return fs
}

// parseFlags parses args into o and then applies the config file, if any.
func parseFlags(fs *flag.FlagSet, o *options, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w: %w", fs.Name(), err, errUsage)
	}
	if o.config == "" {
		return nil
	}

	file, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	o.merge(file, set)
	return nil
}

func loadConfig(path string) (options, error) {
	const errCtx = "loading config"

	var o options
	raw, err := os.ReadFile(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return o, fmt.Errorf("%s: %w", errCtx, err)
	}
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return o, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}
	return o, nil
}

func (o *options) merge(file options, set map[string]bool) {
	if !set["engine"] && file.Engine != "" {
		o.Engine = file.Engine
	}
	if !set["workers"] && file.Workers > 0 {
		o.Workers = file.Workers
	}
	if !set["progress"] && file.Progress {
		o.Progress = true
	}
	if !set["v"] && file.Debug {
		o.Debug = true
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
