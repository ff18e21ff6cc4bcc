// Package qrcode renders bank-transfer QR payloads as PNG images.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent = errors.New("qrcode: content cannot be empty")
	ErrGenerate     = errors.New("qrcode: failed to generate image")
)

const (
	DefaultSize = 320
	maxSize     = 1024
)

// PNG encodes content as a QR image of size×size pixels. Sizes outside
// (0, 1024] fall back to DefaultSize. EMV payment payloads are long, so
// medium error correction keeps the symbol readable on phone screens.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 || size > maxSize {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerate, err)
	}
	return png, nil
}
