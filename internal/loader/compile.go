package loader

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/value"
)

// Mode controls how compile errors are handled.
type Mode int

const (
	// FailFast stops on the first error encountered.
	FailFast Mode = iota
	// CollectAll compiles every node and returns all errors.
	CollectAll
)

var nodeFields = map[string]bool{
	"type":   true,
	"params": true,
	"input":  true,
	"link":   true,
	"once":   true,
	"mute":   true,
	"view":   true,
}

type graphDecl struct {
	name  string
	uses  []string // node types, in declaration order
	ops   []oplog.Op
	binds []oplog.Op
	views []oplog.Op
}

type compiler struct {
	mode Mode
	errs []error
}

// fail records err and reports whether compilation should stop.
func (c *compiler) fail(err error) bool {
	c.errs = append(c.errs, err)
	return c.mode == FailFast
}

// Compile turns a built CUE document into a script.
//
// In FailFast mode the first error is returned alone. In CollectAll mode
// the script holds every graph that compiled and errs lists every failure.
func Compile(v cue.Value, mode Mode) (*oplog.Script, []error) {
	if err := v.Validate(); err != nil {
		return nil, []error{fromCUE(ErrCodeBuildFailed, err)}
	}
	graphsVal := v.LookupPath(cue.ParsePath("graph"))
	if !graphsVal.Exists() {
		return nil, []error{&Error{Code: ErrCodeNoGraphs, Message: "document declares no graph", Pos: v.Pos()}}
	}
	iter, err := graphsVal.Fields()
	if err != nil {
		return nil, []error{fromCUE(ErrCodeGeneric, err)}
	}

	c := &compiler{mode: mode}
	var decls []*graphDecl
	for iter.Next() {
		decl, stop := c.graph(iter.Label(), iter.Value())
		if decl != nil {
			decls = append(decls, decl)
		}
		if stop {
			return nil, c.errs
		}
	}
	if len(decls) == 0 && len(c.errs) == 0 {
		c.errs = append(c.errs, &Error{Code: ErrCodeNoGraphs, Message: "document declares no graph", Pos: graphsVal.Pos()})
	}

	ordered, err := orderGraphs(decls)
	if err != nil {
		c.errs = append(c.errs, err)
		return nil, c.errs
	}
	s := &oplog.Script{}
	for _, d := range ordered {
		ops := append(d.ops, d.binds...)
		ops = append(ops, d.views...)
		s.Graphs = append(s.Graphs, oplog.GraphOps{Name: d.name, Ops: ops})
	}
	return s, c.errs
}

// graph compiles one graph declaration. The returned decl is nil when the
// graph failed.
func (c *compiler) graph(name string, v cue.Value) (*graphDecl, bool) {
	path := "graph." + name
	decl := &graphDecl{name: name}
	nodesVal := v.LookupPath(cue.ParsePath("node"))
	if !nodesVal.Exists() {
		return decl, false
	}
	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, c.fail(fromCUE(ErrCodeGeneric, err))
	}
	ok := true
	for iter.Next() {
		if err := decl.node(path+".node."+iter.Label(), iter.Label(), iter.Value()); err != nil {
			ok = false
			if c.fail(err) {
				return nil, true
			}
		}
	}
	if !ok {
		return nil, false
	}
	return decl, false
}

func (d *graphDecl) node(path, id string, v cue.Value) error {
	fields, err := v.Fields()
	if err != nil {
		return fromCUE(ErrCodeGeneric, err)
	}
	for fields.Next() {
		if !nodeFields[fields.Label()] {
			return &Error{Code: ErrCodeUnknownField, Path: path, Message: fmt.Sprintf("unknown field %q", fields.Label()), Pos: fields.Value().Pos()}
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return &Error{Code: ErrCodeNodeType, Path: path, Message: "type is required", Pos: v.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil || typeName == "" {
		return &Error{Code: ErrCodeNodeType, Path: path + ".type", Message: "type must be a non-empty string", Pos: typeVal.Pos()}
	}

	ops := []oplog.Op{oplog.AddNode(typeName, id)}
	err = eachValue(v, "params", path, func(name string, val value.Value) {
		ops = append(ops, oplog.SetNodeParam(id, name, val))
	})
	if err != nil {
		return err
	}
	err = eachValue(v, "input", path, func(name string, val value.Value) {
		ops = append(ops, oplog.SetNodeInput(id, name, val))
	})
	if err != nil {
		return err
	}

	var binds []oplog.Op
	if linkVal := v.LookupPath(cue.ParsePath("link")); linkVal.Exists() {
		iter, err := linkVal.Fields()
		if err != nil {
			return fromCUE(ErrCodeBadLink, err)
		}
		for iter.Next() {
			ref, err := iter.Value().String()
			src, socket, ok := splitLink(ref)
			if err != nil || !ok {
				return &Error{
					Code:    ErrCodeBadLink,
					Path:    path + ".link." + iter.Label(),
					Message: `link must be a "node.socket" string`,
					Pos:     iter.Value().Pos(),
				}
			}
			binds = append(binds, oplog.BindNodeInput(id, iter.Label(), src, socket))
		}
	}

	for _, opt := range []struct {
		field, option string
	}{{"once", oplog.OptionOnce}, {"mute", oplog.OptionMute}} {
		set, err := flag(v, opt.field, path)
		if err != nil {
			return err
		}
		if set {
			ops = append(ops, oplog.SetNodeOption(id, opt.option))
		}
	}
	view, err := flag(v, "view", path)
	if err != nil {
		return err
	}

	d.uses = append(d.uses, typeName)
	d.ops = append(d.ops, ops...)
	d.ops = append(d.ops, oplog.CompleteNode(id))
	d.binds = append(d.binds, binds...)
	if view {
		d.views = append(d.views, oplog.MarkView(id))
	}
	return nil
}

// splitLink splits "node.socket" at the last dot.
func splitLink(ref string) (node, socket string, ok bool) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

func flag(v cue.Value, field, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &Error{Code: ErrCodeBadValue, Path: path + "." + field, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, nil
}

func eachValue(v cue.Value, field, path string, fn func(name string, val value.Value)) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return fromCUE(ErrCodeBadValue, err)
	}
	for iter.Next() {
		val, err := toValue(iter.Value(), path+"."+field+"."+iter.Label())
		if err != nil {
			return err
		}
		fn(iter.Label(), val)
	}
	return nil
}

// toValue converts a concrete CUE value. Bools become 0/1 like
// value.FromGo; struct fields keep declaration order.
func toValue(v cue.Value, path string) (value.Value, error) {
	bad := func(msg string) error {
		return &Error{Code: ErrCodeBadValue, Path: path, Message: msg, Pos: v.Pos()}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, bad("value must be concrete")
	}
	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil
	case cue.BoolKind:
		b, _ := v.Bool()
		if b {
			return value.Number(1), nil
		}
		return value.Number(0), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, bad(err.Error())
		}
		return value.Number(f), nil
	case cue.StringKind:
		s, _ := v.String()
		return value.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, fromCUE(ErrCodeBadValue, err)
		}
		var items []value.Value
		for i := 0; iter.Next(); i++ {
			item, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return value.NewList(items...), nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, fromCUE(ErrCodeBadValue, err)
		}
		dict := value.NewDict()
		for iter.Next() {
			item, err := toValue(iter.Value(), path+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			dict.Set(iter.Label(), item)
		}
		return value.NewObject(dict), nil
	default:
		return nil, bad(fmt.Sprintf("unsupported kind %v", v.Kind()))
	}
}

// orderGraphs puts templates before their users and main last, otherwise
// keeping declaration order.
func orderGraphs(decls []*graphDecl) ([]*graphDecl, error) {
	byName := make(map[string]*graphDecl, len(decls))
	for _, d := range decls {
		byName[d.name] = d
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(decls))
	var out []*graphDecl
	var visit func(d *graphDecl, chain []string) error
	visit = func(d *graphDecl, chain []string) error {
		switch state[d.name] {
		case done:
			return nil
		case visiting:
			return &Error{
				Code:    ErrCodeTemplateCycle,
				Path:    "graph." + d.name,
				Message: "template cycle: " + strings.Join(append(chain, d.name), " -> "),
			}
		}
		state[d.name] = visiting
		for _, use := range d.uses {
			if dep, ok := byName[use]; ok {
				if err := visit(dep, append(chain, d.name)); err != nil {
					return err
				}
			}
		}
		state[d.name] = done
		out = append(out, d)
		return nil
	}
	for _, d := range decls {
		if d.name == document.MainGraph {
			continue
		}
		if err := visit(d, nil); err != nil {
			return nil, err
		}
	}
	if main, ok := byName[document.MainGraph]; ok {
		if err := visit(main, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
