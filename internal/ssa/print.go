package ssa

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fprint writes the SSA representation of a function to w.
//
// Format:
//
//	func Main.add(2) int:
//	  b0: (entry)
//	    v0 = Param <int> [1]
//	    v1 = Const <int> [42]
//	    v2 = Add <int> v0 v1
//	    Return v2
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "func %s(%d)", f.Name, f.NumArgs)
	if f.Result != ModeVoid {
		fmt.Fprintf(w, " %s", f.Result)
	}
	fmt.Fprintf(w, ":\n")

	for _, b := range f.Blocks {
		fprintBlock(w, b, f)
	}
}

// fprintBlock writes a single block to w.
func fprintBlock(w io.Writer, b *Block, f *Func) {
	label := ""
	if b == f.Entry {
		label = " (entry)"
	}

	predsStr := ""
	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, p := range b.Preds {
			preds[i] = p.String()
		}
		predsStr = " <- " + strings.Join(preds, " ")
	}

	fmt.Fprintf(w, "  %s:%s%s\n", b, label, predsStr)

	for _, v := range b.Values {
		fmt.Fprintf(w, "    %s\n", formatValue(v))
	}

	fmt.Fprintf(w, "    %s\n", formatTerminator(b))
}

// formatValue formats a value as a string.
func formatValue(v *Value) string {
	var sb strings.Builder

	// Every value prints "vN = ": stores and calls are referenced as
	// memory states even when they have no result.
	fmt.Fprintf(&sb, "v%d = %s", v.ID, v.Op)

	if v.Mode != ModeVoid {
		fmt.Fprintf(&sb, " <%s>", v.Mode)
	}

	switch v.Op {
	case OpConst, OpConstBool, OpParam:
		fmt.Fprintf(&sb, " [%d]", v.AuxInt)
	case OpCall:
		if v.AuxInt != 0 {
			fmt.Fprintf(&sb, " [%d]", v.AuxInt)
		}
	}

	if v.Aux != nil {
		fmt.Fprintf(&sb, " {%s}", formatAux(v.Aux))
	}

	for _, arg := range v.Args {
		fmt.Fprintf(&sb, " v%d", arg.ID)
	}

	return sb.String()
}

// formatTerminator formats a block terminator.
func formatTerminator(b *Block) string {
	switch b.Kind {
	case BlockPlain:
		if len(b.Succs) > 0 {
			return fmt.Sprintf("Plain -> %s", b.Succs[0])
		}
		return "Plain"
	case BlockIf:
		if len(b.Controls) > 0 && b.Controls[0] != nil && len(b.Succs) >= 2 {
			succs := make([]string, len(b.Succs))
			for i, s := range b.Succs {
				succs[i] = s.String()
				if i < len(b.Projs) && b.Projs[i] != ProjNone {
					succs[i] += ":" + b.Projs[i].String()
				}
			}
			return fmt.Sprintf("If v%d -> %s", b.Controls[0].ID, strings.Join(succs, " "))
		}
		return "If (malformed)"
	case BlockReturn:
		if len(b.Controls) > 0 && b.Controls[0] != nil {
			return fmt.Sprintf("Return v%d", b.Controls[0].ID)
		}
		return "Return"
	default:
		return "???"
	}
}

// Sprint returns the SSA representation of a function as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

// formatAux formats an Aux value for display.
func formatAux(aux interface{}) string {
	switch a := aux.(type) {
	case string:
		return a
	case fmt.Stringer:
		return a.String()
	default:
		return fmt.Sprintf("%v", aux)
	}
}

// Print writes the SSA representation of a function to stdout.
func Print(f *Func) {
	Fprint(os.Stdout, f)
}
