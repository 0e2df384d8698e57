package tools

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema validates a tool's argument tuple before the implementation runs.
type Schema interface {
	Validate(args []any) error
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc func(args []any) error

func (f SchemaFunc) Validate(args []any) error { return f(args) }

// AnyArgs is a Schema that accepts every argument tuple.
var AnyArgs Schema = SchemaFunc(func([]any) error { return nil })

type cueSchema struct {
	ctx    *cue.Context
	schema cue.Value
	source string
}

// CUE compiles a CUE expression describing the tool's argument tuple, e.g.
//
//	CUE(`[string, int & >=0]`)
//
// declares two arguments: a string and a non-negative integer. Validation
// unifies the encoded argument list against the schema and requires the
// result to be concrete.
func CUE(source string) (Schema, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(source)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("tools: compile schema: %w", err)
	}
	return &cueSchema{ctx: ctx, schema: schema, source: source}, nil
}

// MustCUE is CUE for statically known schemas; it panics on a compile error.
func MustCUE(source string) Schema {
	s, err := CUE(source)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *cueSchema) Validate(args []any) error {
	if args == nil {
		args = []any{}
	}

	encoded := s.ctx.Encode(args)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}

	unified := s.schema.Unify(encoded)
	if err := unified.Err(); err != nil {
		return err
	}
	return unified.Validate(cue.Concrete(true))
}

func (s *cueSchema) String() string {
	return s.source
}
