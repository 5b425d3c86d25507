package config

import (
	"bytes"
	"fmt"

	"github.com/tailscale/hujson"
)

// Standardize turns JSON with // and /* */ comments and trailing commas into
// plain JSON. Removed text is replaced by spaces, so byte offsets and line
// numbers of decoder errors still match the source. src is not modified.
func Standardize(src []byte) ([]byte, error) {
	out, err := hujson.Standardize(bytes.Clone(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return out, nil
}
