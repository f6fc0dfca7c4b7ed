// Package hashing computes the content digests used to identify a mod file
// upstream and in the local lookup cache.
package hashing

import (
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is the identifier Modrinth indexes files by
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Digests holds every digest of one file. Identical bytes always yield
// identical digests.
type Digests struct {
	SHA1        string `json:"sha1" yaml:"sha1"`
	SHA512      string `json:"sha512" yaml:"sha512"`
	Fingerprint uint32 `json:"fingerprint" yaml:"fingerprint"`
	ContentKey  string `json:"content_key" yaml:"content_key"`
}

// Compute hashes data in memory.
func Compute(data []byte) Digests {
	s1 := sha1.Sum(data) //nolint:gosec // G401: see import
	s512 := sha512.Sum512(data)
	key := blake2b.Sum256(data)
	return Digests{
		SHA1:        hex.EncodeToString(s1[:]),
		SHA512:      hex.EncodeToString(s512[:]),
		Fingerprint: Fingerprint(data),
		ContentKey:  hex.EncodeToString(key[:]),
	}
}

// File reads path and hashes its contents.
func File(path string) (Digests, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: caller-supplied mod path
	if err != nil {
		return Digests{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Compute(data), nil
}

// Fingerprint is CurseForge's file fingerprint: 32-bit MurmurHash2 with
// seed 1 over the input with tab, LF, CR and space bytes removed.
func Fingerprint(data []byte) uint32 {
	buf := make([]byte, 0, len(data))
	for _, b := range data {
		if !isWhitespace(b) {
			buf = append(buf, b)
		}
	}
	return murmur2(buf, 1)
}

func isWhitespace(b byte) bool {
	return b == 0x09 || b == 0x0a || b == 0x0d || b == 0x20
}

func murmur2(data []byte, seed uint32) uint32 {
	const (
		m = 0x5bd1e995
		r = 24
	)
	n := len(data)
	h := seed ^ uint32(n) //nolint:gosec // G115: CurseForge truncates the length to 32 bits

	i := 0
	for ; n-i >= 4; i += 4 {
		k := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		k *= m
		k ^= k >> r
		k *= m
		h *= m
		h ^= k
	}

	switch n - i {
	case 3:
		h ^= uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[i])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}
