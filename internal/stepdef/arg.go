package stepdef

import "wirebridge/internal/table"

// ArgKind says how an invocation argument is encoded on the wire.
type ArgKind int

const (
	ArgString ArgKind = iota // JSON string
	ArgTable                 // JSON array of arrays of strings
)

func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgTable:
		return "table"
	default:
		return "unknown"
	}
}

// Arg is one value passed to Invoke.
type Arg struct {
	Kind  ArgKind
	Text  string
	Table *table.Table
}

// String returns a plain text argument.
func String(s string) Arg { return Arg{Kind: ArgString, Text: s} }

// TableArg returns a table argument.
func TableArg(t *table.Table) Arg { return Arg{Kind: ArgTable, Table: t} }

// Argument is a value a step definition extracted from step text.
// Position is the rune offset of the value within that text, or -1
// for an optional group that did not participate in the match.
type Argument struct {
	Value    string
	Position int
}

// encodeArgs converts args to their wire values and picks out the
// local table: the last argument of kind ArgTable.
func encodeArgs(args []Arg) ([]any, *table.Table) {
	out := make([]any, 0, len(args))
	var local *table.Table
	for _, a := range args {
		switch a.Kind {
		case ArgTable:
			t := a.Table
			if t == nil {
				t = table.New(nil)
			}
			out = append(out, t)
			local = t
		default:
			out = append(out, a.Text)
		}
	}
	return out, local
}
