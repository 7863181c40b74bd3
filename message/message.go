// Package message defines the typed payloads carried over topics, services
// and actions, and the codec that moves them on and off the wire.
package message

import (
	"fmt"
	"strings"

	"github.com/XiandiShan/rclgo/errors"
)

// Type identifies a message interface type: the defining package, the
// interface kind and the type name, e.g. std_msgs/msg/String.
type Type struct {
	// Package is the defining interface package, e.g. "std_msgs"
	Package string
	// Kind is the interface kind: "msg", "srv" or "action"
	Kind string
	// Name is the type name within the package, e.g. "String"
	Name string
}

// String returns the canonical slash-separated form: "pkg/kind/Name"
func (t Type) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Package, t.Kind, t.Name)
}

// IsValid reports whether all three components are populated and the kind
// is one of msg, srv or action
func (t Type) IsValid() bool {
	if t.Package == "" || t.Name == "" {
		return false
	}
	switch t.Kind {
	case "msg", "srv", "action":
		return true
	default:
		return false
	}
}

// ParseType parses the canonical "pkg/kind/Name" form
func ParseType(s string) (Type, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Type{}, errors.Newf(errors.KindUnsupportedType, "message", "parse_type",
			"malformed type name %q, want pkg/kind/Name", s)
	}
	t := Type{Package: parts[0], Kind: parts[1], Name: parts[2]}
	if !t.IsValid() {
		return Type{}, errors.Newf(errors.KindUnsupportedType, "message", "parse_type",
			"invalid type name %q", s)
	}
	return t, nil
}

// Message is a typed payload that knows how to serialize itself
type Message interface {
	// TypeName returns the canonical type identifier, e.g. "std_msgs/msg/String"
	TypeName() string
	// MarshalPayload serializes the payload to bytes
	MarshalPayload() ([]byte, error)
	// UnmarshalPayload deserializes the payload from bytes
	UnmarshalPayload(data []byte) error
}

// Raw is an untyped passthrough payload. It carries serialized bytes of a
// declared type without interpreting them, for relays and recorders.
type Raw struct {
	Type string
	Data []byte
}

// TypeName returns the declared type of the carried bytes
func (r *Raw) TypeName() string {
	return r.Type
}

// MarshalPayload returns the carried bytes unchanged
func (r *Raw) MarshalPayload() ([]byte, error) {
	return r.Data, nil
}

// UnmarshalPayload stores the bytes unchanged
func (r *Raw) UnmarshalPayload(data []byte) error {
	r.Data = append(r.Data[:0], data...)
	return nil
}
