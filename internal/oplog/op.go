package oplog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/dopgraph/internal/value"
)

// Kind names an op.
type Kind string

const (
	KindAddNode       Kind = "addNode"
	KindSetNodeParam  Kind = "setNodeParam"
	KindSetNodeInput  Kind = "setNodeInput"
	KindBindNodeInput Kind = "bindNodeInput"
	KindSetNodeOption Kind = "setNodeOption"
	KindMarkView      Kind = "markView"
	KindCompleteNode  Kind = "completeNode"
)

// Option names accepted by setNodeOption.
const (
	OptionOnce = "ONCE"
	OptionMute = "MUTE"
	OptionView = "VIEW"
)

// Op is one structural operation. Which fields are used depends on Kind.
type Op struct {
	Kind Kind

	// Node is the node the op applies to; the destination for bindNodeInput.
	Node string

	// Type is the node type of addNode.
	Type string

	// Name is the param, input socket or option name.
	Name string

	// Value is the param value or input default.
	Value value.Value

	// Src and SrcSocket are the producer of bindNodeInput.
	Src       string
	SrcSocket string
}

// AddNode returns ["addNode", typeName, id].
func AddNode(typeName, id string) Op {
	return Op{Kind: KindAddNode, Type: typeName, Node: id}
}

// SetNodeParam returns ["setNodeParam", id, name, v].
func SetNodeParam(id, name string, v value.Value) Op {
	return Op{Kind: KindSetNodeParam, Node: id, Name: name, Value: value.OrNull(v)}
}

// SetNodeInput returns ["setNodeInput", id, socket, v].
func SetNodeInput(id, socket string, v value.Value) Op {
	return Op{Kind: KindSetNodeInput, Node: id, Name: socket, Value: value.OrNull(v)}
}

// BindNodeInput returns ["bindNodeInput", dst, dstSocket, src, srcSocket].
func BindNodeInput(dst, dstSocket, src, srcSocket string) Op {
	return Op{Kind: KindBindNodeInput, Node: dst, Name: dstSocket, Src: src, SrcSocket: srcSocket}
}

// SetNodeOption returns ["setNodeOption", id, option].
func SetNodeOption(id, option string) Op {
	return Op{Kind: KindSetNodeOption, Node: id, Name: option}
}

// MarkView returns ["markView", id].
func MarkView(id string) Op {
	return Op{Kind: KindMarkView, Node: id}
}

// CompleteNode returns ["completeNode", id].
func CompleteNode(id string) Op {
	return Op{Kind: KindCompleteNode, Node: id}
}

// String renders the op in its JSON form.
func (o Op) String() string {
	b, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("[%q %q <%v>]", o.Kind, o.Node, err)
	}
	return string(b)
}

// MarshalJSON encodes the op as a JSON array. Values use the canonical
// encoding, so the same op always encodes to the same bytes.
func (o Op) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	writeStrings := func(ss ...string) {
		for i, s := range ss {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := json.Marshal(s)
			buf.Write(b)
		}
	}
	switch o.Kind {
	case KindAddNode:
		writeStrings(string(o.Kind), o.Type, o.Node)
	case KindSetNodeParam, KindSetNodeInput:
		writeStrings(string(o.Kind), o.Node, o.Name)
		b, err := value.MarshalCanonical(value.OrNull(o.Value))
		if err != nil {
			return nil, fmt.Errorf("%s %s.%s: %w", o.Kind, o.Node, o.Name, err)
		}
		buf.WriteByte(',')
		buf.Write(b)
	case KindBindNodeInput:
		writeStrings(string(o.Kind), o.Node, o.Name, o.Src, o.SrcSocket)
	case KindSetNodeOption:
		writeStrings(string(o.Kind), o.Node, o.Name)
	case KindMarkView, KindCompleteNode:
		writeStrings(string(o.Kind), o.Node)
	default:
		return nil, fmt.Errorf("unknown op %q", o.Kind)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an op from its JSON array form.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("op must be a JSON array: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty op")
	}
	var kind string
	if err := json.Unmarshal(raw[0], &kind); err != nil {
		return fmt.Errorf("op name must be a string: %w", err)
	}

	want := map[Kind]int{
		KindAddNode:       3,
		KindSetNodeParam:  4,
		KindSetNodeInput:  4,
		KindBindNodeInput: 5,
		KindSetNodeOption: 3,
		KindMarkView:      2,
		KindCompleteNode:  2,
	}
	n, ok := want[Kind(kind)]
	if !ok {
		return fmt.Errorf("unknown op %q", kind)
	}
	if len(raw) != n {
		return fmt.Errorf("op %s takes %d arguments, got %d", kind, n-1, len(raw)-1)
	}

	str := func(i int) (string, error) {
		var s string
		if err := json.Unmarshal(raw[i], &s); err != nil {
			return "", fmt.Errorf("op %s argument %d must be a string", kind, i)
		}
		return s, nil
	}
	strs := make([]string, 0, n-1)
	last := n
	if Kind(kind) == KindSetNodeParam || Kind(kind) == KindSetNodeInput {
		last = n - 1
	}
	for i := 1; i < last; i++ {
		s, err := str(i)
		if err != nil {
			return err
		}
		strs = append(strs, s)
	}

	*o = Op{Kind: Kind(kind)}
	switch o.Kind {
	case KindAddNode:
		o.Type, o.Node = strs[0], strs[1]
	case KindSetNodeParam, KindSetNodeInput:
		o.Node, o.Name = strs[0], strs[1]
		v, err := value.UnmarshalJSON(raw[3])
		if err != nil {
			return fmt.Errorf("op %s value: %w", kind, err)
		}
		o.Value = v
	case KindBindNodeInput:
		o.Node, o.Name, o.Src, o.SrcSocket = strs[0], strs[1], strs[2], strs[3]
	case KindSetNodeOption:
		o.Node, o.Name = strs[0], strs[1]
	case KindMarkView, KindCompleteNode:
		o.Node = strs[0]
	}
	return nil
}

// Encode renders ops as a JSON array with one op per line.
func Encode(ops []Op) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, op := range ops {
		b, err := op.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  ")
		buf.Write(b)
	}
	if len(ops) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

// Decode parses a JSON array of ops.
func Decode(data []byte) ([]Op, error) {
	var ops []Op
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}
