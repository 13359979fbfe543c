package rtabi

// Result is the kind of value a runtime function returns in the result
// register.
type Result int

const (
	ResultVoid Result = iota
	ResultInt
	ResultRef
)

func (r Result) String() string {
	switch r {
	case ResultInt:
		return "int"
	case ResultRef:
		return "ref"
	}
	return "void"
}

