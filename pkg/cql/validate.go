package cql

import "fmt"

// maxIdentifierLen mirrors the server-side limit on unquoted names.
const maxIdentifierLen = 48

// ValidateIdentifier reports whether name is a safe unquoted CQL
// identifier: a letter or underscore followed by letters, digits or
// underscores. Names from untrusted input must pass this check before
// being interpolated into metadata statements.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxIdentifierLen)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return fmt.Errorf("identifier %q starts with a digit", name)
			}
		default:
			return fmt.Errorf("identifier %q contains invalid character %q", name, string(c))
		}
	}
	return nil
}
