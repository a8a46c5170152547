package main

import (
	"fmt"
	"hash"
	"runtime"

	cpuid "github.com/klauspost/cpuid/v2"
	sha256simd "github.com/minio/sha256-simd"

	"TinySum/tinysha"
)

// engine constructs a fresh SHA-256 state for one input.
type engine func() hash.Hash

func newNative() hash.Hash { return tinysha.New() }

var hasSHAExtensions bool

func init() {
	// On ARM64 some features require explicit detection
	if runtime.GOARCH == "arm64" {
		cpuid.DetectARM()
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		hasSHAExtensions = cpuid.CPU.Supports(cpuid.SHA, cpuid.SSSE3, cpuid.SSE4)
	case "arm64":
		hasSHAExtensions = cpuid.CPU.Supports(cpuid.SHA2)
	}
}

// selectEngine resolves an engine name. "auto" only leaves the native
// engine when the CPU has SHA instructions for sha256-simd to use.
func selectEngine(name string) (engine, string, error) {
	switch name {
	case "", "native":
		return newNative, "native", nil
	case "simd":
		return sha256simd.New, "simd", nil
	case "auto":
		if hasSHAExtensions {
			return sha256simd.New, "simd", nil
		}
		return newNative, "native", nil
	}
	return nil, "", fmt.Errorf("unknown engine %q: %w", name, errUsage)
}
