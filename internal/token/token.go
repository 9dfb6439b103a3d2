// Package token generates the short random identifiers used for share links
// and search sessions.
package token

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// Alphabet lists the characters a token may contain.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// Length is the number of characters in every token.
	Length = 8
)

// 252 is the largest multiple of 36 below 256. Bytes at or above it are
// rejected so every character is equally likely.
const maxByte = 256 - (256 % len(Alphabet))

// Generator draws tokens from a byte source.
type Generator struct {
	src io.Reader
}

// NewGenerator returns a Generator reading from src. A nil src means crypto/rand.
func NewGenerator(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{src: src}
}

var std = NewGenerator(nil)

// New returns a fresh token from the cryptographic random source.
func New() (string, error) {
	return std.Next()
}

// Next returns the next token.
func (g *Generator) Next() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s has the shape of a token.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
