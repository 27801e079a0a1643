package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var (
	// ErrEmptyPayload indicates nothing decodable was left after cleansing.
	ErrEmptyPayload = errors.New("assets: empty image payload")
)

// CleanBase64 normalizes a transport-encoded image string.
//
// A data-URI prefix is dropped up through its comma, every character outside
// the standard alphabet is removed (including stray padding), and the result
// is re-padded to a multiple of four. Running it on its own output is a no-op.
func CleanBase64(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		if _, after, ok := strings.Cut(raw, ","); ok {
			raw = after
		}
	} else if _, after, ok := strings.Cut(raw, "base64,"); ok {
		raw = after
	}

	var b strings.Builder
	b.Grow(len(raw) + 3)
	for i := 0; i < len(raw); i++ {
		if strings.IndexByte(base64Alphabet, raw[i]) >= 0 {
			b.WriteByte(raw[i])
		}
	}
	if rem := b.Len() % 4; rem != 0 {
		b.WriteString(strings.Repeat("=", 4-rem))
	}
	return b.String()
}

// DecodeBase64 cleanses and decodes a transport-encoded image string.
func DecodeBase64(raw string) ([]byte, error) {
	cleaned := CleanBase64(raw)
	if cleaned == "" {
		return nil, ErrEmptyPayload
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode base64 (len %d): %w", len(cleaned), err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return data, nil
}
