// Package sidecar reads and writes .sha256 companion files. A record is one
// line holding a lowercase hex digest, two spaces and a file name, the same
// layout sha256sum uses, so hash lists are a sequence of records.
package sidecar
