// Package tinysha is a self-contained SHA-256 engine: an incremental
// Merkle–Damgård accumulator over 64-byte blocks producing a 32-byte digest.
package tinysha

import (
	"encoding/binary"
	"hash"
)

// Size is the length of a digest in bytes.
const Size = 32

// BlockSize is the length of one compression block in bytes.
const BlockSize = 64

const (
	iv0 = 0x6a09e667
	iv1 = 0xbb67ae85
	iv2 = 0x3c6ef372
	iv3 = 0xa54ff53a
	iv4 = 0x510e527f
	iv5 = 0x9b05688c
	iv6 = 0x1f83d9ab
	iv7 = 0x5be0cd19
)

// Digest holds the running state of one hashing session.
// A Digest must not be used from several goroutines at once.
type Digest struct {
	h   [8]uint32
	x   [BlockSize]byte
	nx  int
	len uint64 // bits compressed by Update, padding excluded
}

var _ hash.Hash = (*Digest)(nil)

// New returns an initialized Digest.
func New() *Digest {
	d := new(Digest)
	d.Reset()
	return d
}

// Reset puts the Digest back into its initial state.
func (d *Digest) Reset() {
	d.h = [8]uint32{iv0, iv1, iv2, iv3, iv4, iv5, iv6, iv7}
	d.nx = 0
	d.len = 0
}

// Update feeds p into the hash state.
func (d *Digest) Update(p []byte) {
	if d.nx > 0 {
		n := copy(d.x[d.nx:], p)
		d.nx += n
		p = p[n:]
		if d.nx < BlockSize {
			return
		}
		block(&d.h, d.x[:])
		d.len += BlockSize * 8
		d.nx = 0
	}
	if n := len(p) &^ (BlockSize - 1); n > 0 {
		block(&d.h, p[:n])
		d.len += uint64(n) * 8
		p = p[n:]
	}
	d.nx = copy(d.x[:], p)
}

// Write implements io.Writer. It never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.Update(p)
	return len(p), nil
}

// Finalize pads the input and returns the digest. The receiver is left
// untouched, so calling it twice yields the same value.
func (d *Digest) Finalize() [Size]byte {
	c := *d
	return c.checkSum()
}

// Sum appends the digest to b.
func (d *Digest) Sum(b []byte) []byte {
	sum := d.Finalize()
	return append(b, sum[:]...)
}

// Size returns the digest length in bytes.
func (d *Digest) Size() int { return Size }

// BlockSize returns the compression block length in bytes.
func (d *Digest) BlockSize() int { return BlockSize }

func (d *Digest) checkSum() [Size]byte {
	d.len += uint64(d.nx) * 8

	d.x[d.nx] = 0x80
	d.nx++
	if d.nx > 56 {
		clear(d.x[d.nx:])
		block(&d.h, d.x[:])
		d.nx = 0
	}
	clear(d.x[d.nx:56])
	binary.BigEndian.PutUint64(d.x[56:], d.len)
	block(&d.h, d.x[:])

	var out [Size]byte
	for i, s := range d.h {
		binary.BigEndian.PutUint32(out[i*4:], s)
	}
	return out
}

// Sum256 returns the digest of data.
func Sum256(data []byte) [Size]byte {
	var d Digest
	d.Reset()
	d.Update(data)
	return d.checkSum()
}
