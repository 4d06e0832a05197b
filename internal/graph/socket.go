package graph

import (
	"strconv"
	"strings"

	"github.com/roach88/dopgraph/internal/value"
)

// SocketKind distinguishes input from output sockets.
type SocketKind int

const (
	Input SocketKind = iota
	Output
)

func (k SocketKind) String() string {
	if k == Output {
		return "output"
	}
	return "input"
}

// AnyType is the wildcard declared type. Sockets with an empty type or
// AnyType connect to everything.
const AnyType = "any"

// Link is the binding of an input socket to the output socket that feeds it.
type Link struct {
	Node   string `json:"node"`
	Socket string `json:"socket"`
}

// Socket is a named attachment point on a node.
type Socket struct {
	Name  string
	Owner string
	Kind  SocketKind
	Type  string

	// Default is read when an input has no link. nil means no default.
	Default value.Value

	// Required inputs without a link or default fail evaluation.
	Required bool

	// Link is the producing output for a bound input. Always nil on outputs.
	Link *Link
}

// HasDefault reports whether the socket declares a default value.
func (s *Socket) HasDefault() bool {
	return s.Default != nil
}

func (s *Socket) clone(owner string) *Socket {
	out := *s
	out.Owner = owner
	if s.Link != nil {
		l := *s.Link
		out.Link = &l
	}
	return &out
}

// SocketSpec declares a socket in a node layout.
//
// A Variadic input spec declares no socket by itself. Instead it permits
// positionally ordered sub-sockets named Name+"0", Name+"1", ... which are
// created when an edge or default first targets them.
type SocketSpec struct {
	Name     string      `json:"name"`
	Type     string      `json:"type,omitempty"`
	Default  value.Value `json:"-"`
	Required bool        `json:"required,omitempty"`
	Variadic bool        `json:"variadic,omitempty"`
}

// ParamSpec declares a node parameter and its initial value.
type ParamSpec struct {
	Name    string      `json:"name"`
	Default value.Value `json:"-"`
}

func (spec SocketSpec) socket(owner string, kind SocketKind, name string) *Socket {
	return &Socket{
		Name:     name,
		Owner:    owner,
		Kind:     kind,
		Type:     spec.Type,
		Default:  spec.Default,
		Required: spec.Required,
	}
}

// SubSocketIndex parses name as a sub-socket of the variadic prefix. It
// returns the position and true when name is prefix followed by a
// non-negative decimal index.
func SubSocketIndex(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	// Reject signs and leading zeros so each index has exactly one name.
	if rest[0] < '0' || rest[0] > '9' || (len(rest) > 1 && rest[0] == '0') {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// SubSocketName returns the name of the i-th sub-socket of a variadic prefix.
func SubSocketName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

func typesCompatible(src, dst string) bool {
	if src == "" || dst == "" || src == AnyType || dst == AnyType {
		return true
	}
	return src == dst
}
