package hashing

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/spf13/afero"
)

// Hasher computes the content digest of a single file
type Hasher interface {
	Hash(path string) (types.Digest, error)
}

// ContentHasher streams file content through a fixed-size buffer into a
// cryptographic digest. It is safe for concurrent use.
type ContentHasher struct {
	fs        afero.Fs
	algorithm options.HashAlgorithm
	newHash   func() hash.Hash
	buffers   sync.Pool
}

// NewContentHasher creates a hasher reading from fs with the given options
func NewContentHasher(fs afero.Fs, opts options.ScanOptions) (*ContentHasher, error) {
	opts = opts.Normalize()

	newHash, err := hashConstructor(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	bufferSize := opts.BufferSize
	return &ContentHasher{
		fs:        fs,
		algorithm: opts.Algorithm,
		newHash:   newHash,
		buffers: sync.Pool{
			New: func() any {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}, nil
}

func hashConstructor(algorithm options.HashAlgorithm) (func() hash.Hash, error) {
	switch algorithm {
	case options.HashSHA256:
		return sha256.New, nil
	case options.HashSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, algorithm)
	}
}

// Algorithm returns the digest algorithm in use
func (h *ContentHasher) Algorithm() options.HashAlgorithm {
	return h.algorithm
}

// Hash reads the whole file and returns its digest. The file handle is
// closed on every return path.
func (h *ContentHasher) Hash(path string) (types.Digest, error) {
	file, err := h.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	bufPtr := h.buffers.Get().(*[]byte)
	defer h.buffers.Put(bufPtr)
	buf := *bufPtr

	digest := h.newHash()
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, readErr)
		}
	}

	return types.Digest(digest.Sum(nil)), nil
}

// CountingHasher wraps a Hasher and records every path it was asked to hash
type CountingHasher struct {
	next  Hasher
	calls atomic.Int64
	mu    sync.Mutex
	paths []string
}

// NewCountingHasher decorates next with call accounting
func NewCountingHasher(next Hasher) *CountingHasher {
	return &CountingHasher{next: next}
}

// Hash delegates to the wrapped hasher
func (c *CountingHasher) Hash(path string) (types.Digest, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	return c.next.Hash(path)
}

// Calls returns the number of Hash invocations
func (c *CountingHasher) Calls() int64 {
	return c.calls.Load()
}

// Paths returns the hashed paths sorted lexically
func (c *CountingHasher) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.paths...)
	sort.Strings(out)
	return out
}
