// Package rtabi defines the calling conventions shared between generated
// molki code and the MiniJava runtime library.
package rtabi

import "sort"

// Runtime function symbols (must match the runtime library's exports)
const (
	// I/O functions
	FnPrintln = "__stdlib_println"
	FnWrite   = "__stdlib_write"
	FnFlush   = "__stdlib_flush"
	FnRead    = "__stdlib_read"

	// Memory allocation
	FnCalloc = "__stdlib_calloc"
)

// Callee names the front end uses for runtime support.
const (
	CalleePrintln = "println"
	CalleeWrite   = "write"
	CalleeFlush   = "flush"
	CalleeRead    = "read"
	CalleeAlloc   = "alloc"
)

// FuncSignature describes a runtime function for code generation.
type FuncSignature struct {
	Callee    string // name the front end calls
	Symbol    string // symbol the generated code calls
	NumParams int
	Result    Result
}

// RuntimeFunctions returns the signatures of all runtime functions.
func RuntimeFunctions() []FuncSignature {
	return []FuncSignature{
		// I/O functions
		{Callee: CalleePrintln, Symbol: FnPrintln, NumParams: 1, Result: ResultVoid},
		{Callee: CalleeWrite, Symbol: FnWrite, NumParams: 1, Result: ResultVoid},
		{Callee: CalleeFlush, Symbol: FnFlush, Result: ResultVoid},
		{Callee: CalleeRead, Symbol: FnRead, Result: ResultInt},

		// Memory allocation: element count and element size.
		{Callee: CalleeAlloc, Symbol: FnCalloc, NumParams: 2, Result: ResultRef},
	}
}

// Table maps callee names to runtime functions.
type Table map[string]FuncSignature

// NewTable returns the runtime table with symbols replaced as given by
// overrides (callee name to symbol). Unknown callee names are returned
// in sorted order.
func NewTable(overrides map[string]string) (Table, []string) {
	t := make(Table)
	for _, sig := range RuntimeFunctions() {
		t[sig.Callee] = sig
	}
	var unknown []string
	for callee, sym := range overrides {
		sig, ok := t[callee]
		if !ok {
			unknown = append(unknown, callee)
			continue
		}
		sig.Symbol = sym
		t[callee] = sig
	}
	sort.Strings(unknown)
	return t, unknown
}

// Lookup returns the runtime function called callee.
func (t Table) Lookup(callee string) (FuncSignature, bool) {
	sig, ok := t[callee]
	return sig, ok
}
