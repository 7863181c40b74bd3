// Package names expands, remaps and validates topic, namespace and node
// names. Validators report malformed input as a value carrying the first
// invalid character index; malformed names are an expected, recoverable
// case, never a panic.
package names

import (
	"strings"

	"github.com/XiandiShan/rclgo/errors"
)

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}

// ValidateTopicName validates a possibly-relative topic name before
// expansion. Relative names, the private prefix '~' and substitution
// tokens in curly braces are allowed. Returns nil when the name is valid.
func ValidateTopicName(name string) *errors.ValidationError {
	if name == "" {
		return &errors.ValidationError{Message: "topic name must not be empty", Index: 0}
	}
	if strings.HasSuffix(name, "/") {
		return &errors.ValidationError{Message: "topic name must not end with a forward slash", Index: len(name) - 1}
	}

	inSubstitution := false
	substitutionStart := 0
	tokenStart := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '{':
			if inSubstitution {
				return &errors.ValidationError{Message: "topic name must not nest substitutions", Index: i}
			}
			inSubstitution = true
			substitutionStart = i + 1
		case c == '}':
			if !inSubstitution {
				return &errors.ValidationError{Message: "topic name has an unmatched closing curly brace", Index: i}
			}
			if i == substitutionStart {
				return &errors.ValidationError{Message: "topic name has an empty substitution", Index: i}
			}
			inSubstitution = false
		case inSubstitution:
			if i == substitutionStart && !isAlpha(c) && c != '_' {
				return &errors.ValidationError{Message: "substitution name must not start with a number", Index: i}
			}
			if !isAlnum(c) && c != '_' {
				return &errors.ValidationError{Message: "substitution name contains unallowed characters", Index: i}
			}
		case c == '~':
			if i != 0 {
				return &errors.ValidationError{Message: "topic name must not have a tilde unless it is the first character", Index: i}
			}
			if len(name) > 1 && name[1] != '/' {
				return &errors.ValidationError{Message: "tilde must be followed by a forward slash", Index: 1}
			}
		case c == '/':
			if i > 0 && name[i-1] == '/' {
				return &errors.ValidationError{Message: "topic name must not contain repeated forward slashes", Index: i}
			}
			tokenStart = i + 1
		default:
			if !isAlnum(c) && c != '_' {
				return &errors.ValidationError{Message: "topic name must not contain characters other than alphanumerics, underscores, tildes, curly braces and forward slashes", Index: i}
			}
			if i == tokenStart && c >= '0' && c <= '9' {
				return &errors.ValidationError{Message: "topic name token must not start with a number", Index: i}
			}
		}
	}
	if inSubstitution {
		return &errors.ValidationError{Message: "topic name has an unmatched opening curly brace", Index: substitutionStart - 1}
	}
	return nil
}

// ValidateFullTopicName validates a fully qualified topic or service name:
// absolute, expanded and substitution-free. Returns nil when valid.
func ValidateFullTopicName(name string) *errors.ValidationError {
	if name == "" {
		return &errors.ValidationError{Message: "topic name must not be empty", Index: 0}
	}
	if name[0] != '/' {
		return &errors.ValidationError{Message: "topic name must be absolute, it must lead with a '/'", Index: 0}
	}
	if len(name) > 1 && strings.HasSuffix(name, "/") {
		return &errors.ValidationError{Message: "topic name must not end with a forward slash", Index: len(name) - 1}
	}
	if name == "/" {
		return &errors.ValidationError{Message: "topic name must not end with a forward slash", Index: 0}
	}

	tokenStart := 1
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '/':
			if name[i-1] == '/' {
				return &errors.ValidationError{Message: "topic name must not contain repeated forward slashes", Index: i}
			}
			tokenStart = i + 1
		case !isAlnum(c) && c != '_':
			return &errors.ValidationError{Message: "topic name must not contain characters other than alphanumerics, underscores and forward slashes", Index: i}
		case i == tokenStart && c >= '0' && c <= '9':
			return &errors.ValidationError{Message: "topic name token must not start with a number", Index: i}
		}
	}
	return nil
}

// ValidateNamespace validates a node namespace. The root namespace "/" is
// valid; any other namespace follows full topic name rules. Returns nil
// when valid.
func ValidateNamespace(namespace string) *errors.ValidationError {
	if namespace == "" {
		return &errors.ValidationError{Message: "namespace must not be empty", Index: 0}
	}
	if namespace[0] != '/' {
		return &errors.ValidationError{Message: "namespace must be absolute, it must lead with a '/'", Index: 0}
	}
	if namespace == "/" {
		return nil
	}
	if v := ValidateFullTopicName(namespace); v != nil {
		// Reword in namespace terms, keeping the index.
		return &errors.ValidationError{
			Message: strings.Replace(v.Message, "topic name", "namespace", 1),
			Index:   v.Index,
		}
	}
	return nil
}

// ValidateNodeName validates a bare node name: alphanumerics and
// underscores only, not starting with a number. Returns nil when valid.
func ValidateNodeName(name string) *errors.ValidationError {
	if name == "" {
		return &errors.ValidationError{Message: "node name must not be empty", Index: 0}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return &errors.ValidationError{Message: "node name must not start with a number", Index: 0}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isAlnum(c) && c != '_' {
			return &errors.ValidationError{Message: "node name must not contain characters other than alphanumerics and underscores", Index: i}
		}
	}
	return nil
}
