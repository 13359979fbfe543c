package ssa

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
)

// FormatVersion is the dump format version written by Encode.
const FormatVersion = "1.0.0"

// formatConstraint lists the dump versions Decode understands.
var formatConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint("^1.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// The JSON dump written by the SSA-construction front end.
//
//	{"version": "1.0.0", "functions": [{"name": "Main.main", "args": 1,
//	  "blocks": [{"id": 0, "kind": "ret", "values": [...]}]}]}
type jsonProgram struct {
	Version   string     `json:"version"`
	Functions []jsonFunc `json:"functions"`
}

type jsonFunc struct {
	Name   string      `json:"name"`
	Args   int         `json:"args"`
	Result string      `json:"result,omitempty"`
	Blocks []jsonBlock `json:"blocks"`
}

type jsonBlock struct {
	ID       ID          `json:"id"`
	Kind     string      `json:"kind"`
	Preds    []ID        `json:"preds,omitempty"`
	Succs    []jsonSucc  `json:"succs,omitempty"`
	Controls []ID        `json:"controls,omitempty"`
	Values   []jsonValue `json:"values,omitempty"`
}

type jsonSucc struct {
	Block ID     `json:"block"`
	Proj  string `json:"proj,omitempty"`
}

type jsonValue struct {
	ID     ID        `json:"id"`
	Op     string    `json:"op"`
	Mode   string    `json:"mode,omitempty"`
	AuxInt int64     `json:"auxint,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Rel    string    `json:"rel,omitempty"`
	Addr   *jsonAddr `json:"addr,omitempty"`
	Args   []ID      `json:"args,omitempty"`
}

type jsonAddr struct {
	Kind   string `json:"kind"`
	Offset int64  `json:"offset,omitempty"`
	Scale  int64  `json:"scale,omitempty"`
}

// Decode reads a program from its JSON dump.
//
// A block that omits "preds" gets its predecessors in the order in which
// blocks list it as a successor; phi arguments follow that order.
func Decode(r io.Reader) (*Program, error) {
	var doc jsonProgram
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding SSA dump: %w", err)
	}

	v, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("SSA dump version %q: %w", doc.Version, err)
	}
	if !formatConstraint.Check(v) {
		return nil, fmt.Errorf("SSA dump version %s is not supported (want %s)", v, formatConstraint)
	}

	prog := &Program{Version: doc.Version}
	for i := range doc.Functions {
		f, err := decodeFunc(&doc.Functions[i])
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", doc.Functions[i].Name, err)
		}
		prog.Funcs = append(prog.Funcs, f)
	}
	return prog, nil
}

func decodeFunc(jf *jsonFunc) (*Func, error) {
	if len(jf.Blocks) == 0 {
		return nil, fmt.Errorf("no blocks")
	}
	result := ModeVoid
	if jf.Result != "" {
		m, ok := lookupMode(jf.Result)
		if !ok {
			return nil, fmt.Errorf("unknown result mode %q", jf.Result)
		}
		result = m
	}

	f := &Func{Name: jf.Name, NumArgs: jf.Args, Result: result}
	blocks := make(map[ID]*Block, len(jf.Blocks))
	values := make(map[ID]*Value)

	// Pass 1: blocks and values, so that operands may refer forward
	// (phis on loop headers).
	for _, jb := range jf.Blocks {
		if _, dup := blocks[jb.ID]; dup {
			return nil, fmt.Errorf("duplicate block b%d", jb.ID)
		}
		kind, ok := lookupBlockKind(jb.Kind)
		if !ok {
			return nil, fmt.Errorf("b%d: unknown block kind %q", jb.ID, jb.Kind)
		}
		b := &Block{ID: jb.ID, Kind: kind, Func: f}
		blocks[jb.ID] = b
		f.Blocks = append(f.Blocks, b)
		if jb.ID >= f.nextBlockID {
			f.nextBlockID = jb.ID + 1
		}

		for _, jv := range jb.Values {
			if _, dup := values[jv.ID]; dup {
				return nil, fmt.Errorf("duplicate value v%d", jv.ID)
			}
			v, err := decodeValue(&jv)
			if err != nil {
				return nil, fmt.Errorf("b%d, v%d: %w", jb.ID, jv.ID, err)
			}
			v.Block = b
			values[jv.ID] = v
			b.Values = append(b.Values, v)
			if jv.ID >= f.nextValueID {
				f.nextValueID = jv.ID + 1
			}
		}
	}
	f.Entry = f.Blocks[0]

	// Pass 2: operands and edges.
	derived := make(map[*Block][]*Block)
	for i, jb := range jf.Blocks {
		b := f.Blocks[i]
		for j, jv := range jb.Values {
			v := b.Values[j]
			for _, id := range jv.Args {
				arg, ok := values[id]
				if !ok {
					return nil, fmt.Errorf("b%d, v%d: unknown operand v%d", jb.ID, jv.ID, id)
				}
				v.AddArg(arg)
			}
		}
		for _, id := range jb.Controls {
			c, ok := values[id]
			if !ok {
				return nil, fmt.Errorf("b%d: unknown control v%d", jb.ID, id)
			}
			b.Controls = append(b.Controls, c)
			c.Uses++
		}
		for _, s := range jb.Succs {
			succ, ok := blocks[s.Block]
			if !ok {
				return nil, fmt.Errorf("b%d: unknown successor b%d", jb.ID, s.Block)
			}
			proj, err := lookupProj(s.Proj)
			if err != nil {
				return nil, fmt.Errorf("b%d: %w", jb.ID, err)
			}
			b.Succs = append(b.Succs, succ)
			b.Projs = append(b.Projs, proj)
			derived[succ] = append(derived[succ], b)
		}
		for _, id := range jb.Preds {
			pred, ok := blocks[id]
			if !ok {
				return nil, fmt.Errorf("b%d: unknown predecessor b%d", jb.ID, id)
			}
			b.Preds = append(b.Preds, pred)
		}
	}
	for i, jb := range jf.Blocks {
		if len(jb.Preds) == 0 {
			f.Blocks[i].Preds = derived[f.Blocks[i]]
		}
	}
	return f, nil
}

func decodeValue(jv *jsonValue) (*Value, error) {
	op, ok := LookupOp(jv.Op)
	if !ok {
		return nil, fmt.Errorf("unknown op %q", jv.Op)
	}
	mode := ModeVoid
	if jv.Mode != "" {
		if mode, ok = lookupMode(jv.Mode); !ok {
			return nil, fmt.Errorf("unknown mode %q", jv.Mode)
		}
	}
	v := &Value{ID: jv.ID, Op: op, Mode: mode, AuxInt: jv.AuxInt}

	switch op {
	case OpCmp:
		rel, ok := lookupRelation(jv.Rel)
		if !ok {
			return nil, fmt.Errorf("unknown relation %q", jv.Rel)
		}
		v.Aux = rel
	case OpLoad, OpStore:
		addr := Addressing{Kind: AddrDirect}
		if jv.Addr != nil {
			kind, ok := lookupAddrKind(jv.Addr.Kind)
			if !ok {
				return nil, fmt.Errorf("unknown addressing kind %q", jv.Addr.Kind)
			}
			addr = Addressing{Kind: kind, Offset: jv.Addr.Offset, Scale: jv.Addr.Scale}
		}
		v.Aux = addr
	case OpAddress:
		v.Aux = jv.Symbol
	}
	return v, nil
}

func lookupProj(name string) (Proj, error) {
	switch name {
	case "":
		return ProjNone, nil
	case "true":
		return ProjTrue, nil
	case "false":
		return ProjFalse, nil
	}
	return ProjNone, fmt.Errorf("unknown branch projection %q", name)
}

func lookupAddrKind(name string) (AddrKind, bool) {
	for k, n := range addrKindNames {
		if n == name {
			return AddrKind(k), true
		}
	}
	return AddrDirect, false
}

// Encode writes prog as a JSON dump that Decode reads back.
func Encode(w io.Writer, prog *Program) error {
	doc := jsonProgram{Version: prog.Version}
	if doc.Version == "" {
		doc.Version = FormatVersion
	}
	for _, f := range prog.Funcs {
		doc.Functions = append(doc.Functions, encodeFunc(f))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func encodeFunc(f *Func) jsonFunc {
	jf := jsonFunc{Name: f.Name, Args: f.NumArgs}
	if f.Result != ModeVoid {
		jf.Result = f.Result.String()
	}
	for _, b := range f.Blocks {
		jb := jsonBlock{ID: b.ID, Kind: b.Kind.String()}
		for _, p := range b.Preds {
			jb.Preds = append(jb.Preds, p.ID)
		}
		for i, s := range b.Succs {
			js := jsonSucc{Block: s.ID}
			if i < len(b.Projs) {
				js.Proj = b.Projs[i].String()
			}
			jb.Succs = append(jb.Succs, js)
		}
		for _, c := range b.Controls {
			if c != nil {
				jb.Controls = append(jb.Controls, c.ID)
			}
		}
		for _, v := range b.Values {
			jb.Values = append(jb.Values, encodeValue(v))
		}
		jf.Blocks = append(jf.Blocks, jb)
	}
	return jf
}

func encodeValue(v *Value) jsonValue {
	jv := jsonValue{ID: v.ID, Op: v.Op.String(), AuxInt: v.AuxInt}
	if v.Mode != ModeVoid {
		jv.Mode = v.Mode.String()
	}
	switch v.Op {
	case OpCmp:
		jv.Rel = v.Relation().String()
	case OpLoad, OpStore:
		a := v.Addressing()
		jv.Addr = &jsonAddr{Kind: a.Kind.String(), Offset: a.Offset, Scale: a.Scale}
	case OpAddress:
		jv.Symbol = v.Symbol()
	}
	for _, arg := range v.Args {
		jv.Args = append(jv.Args, arg.ID)
	}
	return jv
}
