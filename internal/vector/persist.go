package vector

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ErrNoCache is returned by Load when the cache file does not exist.
var ErrNoCache = errors.New("vector cache not found")

// Fingerprint identifies the input a vector file was computed from.
type Fingerprint [sha256.Size]byte

// headerSize is dimension (4), n (4) and the fingerprint.
const headerSize = 8 + sha256.Size

// NewFingerprint hashes the vectorizer settings and every text in order.
// Texts are length-prefixed so that moving a boundary changes the result.
func NewFingerprint(settings string, texts []string) Fingerprint {
	h := sha256.New()
	var buf [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	write(settings)
	binary.LittleEndian.PutUint64(buf[:], uint64(len(texts)))
	h.Write(buf[:])
	for _, t := range texts {
		write(t)
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Save persists m to path. Directory is created if needed. Format: dimension (4), n (4),
// fingerprint (32), then n*dimension little-endian float32 values.
func Save(path string, m Matrix, fp Fingerprint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vector cache dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector cache: %w", err)
	}
	w := bufio.NewWriter(f)
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(m.Dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(m.Rows))
	copy(header[8:], fp[:])
	if _, err := w.Write(header[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(float32SliceToBytes(m.Data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush vector cache: %w", err)
	}
	return f.Close()
}

// Load reads a matrix written by Save together with its fingerprint. It
// returns ErrNoCache if path does not exist. The header must agree with the
// file size before anything is allocated.
func Load(path string) (Matrix, Fingerprint, error) {
	var fp Fingerprint
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Matrix{}, fp, ErrNoCache
		}
		return Matrix{}, fp, fmt.Errorf("open vector cache: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Matrix{}, fp, fmt.Errorf("stat vector cache: %w", err)
	}
	r := bufio.NewReader(f)
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Matrix{}, fp, fmt.Errorf("read header: %w", err)
	}
	dim := binary.LittleEndian.Uint32(header[0:4])
	n := binary.LittleEndian.Uint32(header[4:8])
	copy(fp[:], header[8:])

	size := uint64(dim) * uint64(n) * 4
	if size+headerSize != uint64(info.Size()) {
		return Matrix{}, fp, fmt.Errorf("corrupt vector cache %s: header claims %dx%d vectors in %d bytes", path, n, dim, info.Size())
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Matrix{}, fp, fmt.Errorf("read vectors: %w", err)
	}
	return Matrix{Rows: int(n), Dim: int(dim), Data: bytesToFloat32Slice(buf)}, fp, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
