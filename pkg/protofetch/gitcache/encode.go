// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"fmt"
	"strings"
)

// EncodeURL turns a schemeless repository url into a directory name.
// The scheme is deterministic and injective: '/' maps to '_', a literal
// '_' maps to '%5F', and any other byte outside [A-Za-z0-9.-] maps to
// its '%XX' form. Example: github.com/org/repo -> github.com_org_repo.
func EncodeURL(url string) string {
	var b strings.Builder

	for i := 0; i < len(url); i++ {
		c := url[i]
		switch {
		case c == '/':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}

	return b.String()
}

// DecodeURL reverses EncodeURL.
func DecodeURL(name string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case '_':
			b.WriteByte('/')
		case '%':
			if i+2 >= len(name) {
				return "", fmt.Errorf("Truncated escape in '%s'", name)
			}
			var decoded byte
			_, err := fmt.Sscanf(name[i+1:i+3], "%02X", &decoded)
			if err != nil {
				return "", fmt.Errorf("Bad escape in '%s': %s", name, err)
			}
			b.WriteByte(decoded)
			i += 2
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}
