// Package mangle turns arbitrary host file and directory names into the
// d-character identifiers ECMA-119 requires on disc.
package mangle

import (
	"fmt"
	"strings"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
)

// InterchangeLevel selects how strict the 8.3-style length caps are.
type InterchangeLevel int

const (
	// InterchangeLevel1 caps identifiers to 8.3 (file) / 8 (directory)
	// d-characters, per ECMA-119 7.5/7.6. This is the default.
	InterchangeLevel1 InterchangeLevel = 1
	// InterchangeLevel2 relaxes the length cap to 30 d-characters but keeps
	// the same character set and the mandatory ";VERSION" suffix on files.
	InterchangeLevel2 InterchangeLevel = 2
)

const (
	level1MaxName = 8
	level1MaxExt  = 3
	level2MaxTotal = 30
)

// MangleFile converts a host file name into a NAME.EXT;VERSION identifier.
// Returns an error if name is empty or contains a byte outside the
// d-character set. The error wraps no sentinel; the root package's facade
// wraps it in ErrInvalidArgument.
func MangleFile(name string, level InterchangeLevel) (string, error) {
	if name == "" {
		return "", fmt.Errorf("mangle: empty file name")
	}

	base, ext := splitExt(name)
	base, err := mangleDString(base)
	if err != nil {
		return "", fmt.Errorf("mangle: %q: %w", name, err)
	}
	ext, err = mangleDString(ext)
	if err != nil {
		return "", fmt.Errorf("mangle: %q: %w", name, err)
	}

	switch level {
	case InterchangeLevel2:
		total := len(base)
		if len(ext) > 0 {
			total += 1 + len(ext)
		}
		if total > level2MaxTotal {
			overflow := total - level2MaxTotal
			if overflow >= len(base) {
				return "", fmt.Errorf("mangle: %q has no room for a name after truncating extension", name)
			}
			base = base[:len(base)-overflow]
		}
	default:
		if len(base) > level1MaxName {
			base = base[:level1MaxName]
		}
		if len(ext) > level1MaxExt {
			ext = ext[:level1MaxExt]
		}
	}

	// ECMA-119 7.5.1: the separator before the extension is present even when
	// the extension itself is empty, so an extensionless name still ends in
	// a dot before the version suffix (e.g. "FOO.;1").
	return base + "." + ext + ";1", nil
}

// MangleDirectory converts a host directory name into a d-character
// directory identifier (no extension, no version suffix, per ECMA-119 7.6).
func MangleDirectory(name string, level InterchangeLevel) (string, error) {
	if name == "" {
		return "", fmt.Errorf("mangle: empty directory name")
	}

	mangled, err := mangleDString(name)
	if err != nil {
		return "", fmt.Errorf("mangle: %q: %w", name, err)
	}
	max := level1MaxName
	if level == InterchangeLevel2 {
		max = level2MaxTotal
	}
	if len(mangled) > max {
		mangled = mangled[:max]
	}
	return mangled, nil
}

func splitExt(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// mangleDString upper-cases the input and rejects any byte outside the
// d-character set. Invalid bytes are a caller-visible error rather than a
// silent '_' substitution: a rejected file name needs to surface to the
// facade caller, not vanish into a mangled identifier nobody asked for.
func mangleDString(input string) (string, error) {
	input = strings.ToUpper(input)
	allowed := consts.D_CHARACTERS
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !strings.ContainsRune(allowed, r) {
			return "", fmt.Errorf("invalid d-character %q", r)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
