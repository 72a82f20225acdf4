package starlarkrt

import (
	"fmt"
	"math/big"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ahrav/go-nbload/infrastructure/source"
)

// ParseAssignment reports whether text is a single `name = literal`
// statement. Common leading indentation is removed first so declarations
// may be written inside indented docstrings.
func (r *Runtime) ParseAssignment(text string) (string, any, bool, error) {
	f, err := syntax.Parse("<parameter>", source.Dedent(text), 0)
	if err != nil || len(f.Stmts) != 1 {
		return "", nil, false, nil
	}

	assign, ok := f.Stmts[0].(*syntax.AssignStmt)
	if !ok || assign.Op != syntax.EQ {
		return "", nil, false, nil
	}
	id, ok := assign.LHS.(*syntax.Ident)
	if !ok {
		return "", nil, false, nil
	}

	v, err := Literal(assign.RHS)
	if err != nil {
		return id.Name, nil, true, err
	}
	return id.Name, v, true, nil
}

// Literal evaluates a constant expression without executing anything.
// Accepted forms are None, True, False, numbers, strings, bytes, unary
// plus or minus on a number, and lists, tuples and dicts built from these.
func Literal(e syntax.Expr) (starlark.Value, error) {
	switch e := e.(type) {
	case *syntax.Literal:
		switch v := e.Value.(type) {
		case string:
			if e.Token == syntax.BYTES {
				return starlark.Bytes(v), nil
			}
			return starlark.String(v), nil
		case int64:
			return starlark.MakeInt64(v), nil
		case *big.Int:
			return starlark.MakeBigInt(v), nil
		case float64:
			return starlark.Float(v), nil
		}
	case *syntax.Ident:
		switch e.Name {
		case "None":
			return starlark.None, nil
		case "True":
			return starlark.True, nil
		case "False":
			return starlark.False, nil
		}
		return nil, fmt.Errorf("name %s is not a literal", e.Name)
	case *syntax.ParenExpr:
		return Literal(e.X)
	case *syntax.UnaryExpr:
		if e.Op != syntax.MINUS && e.Op != syntax.PLUS {
			break
		}
		x, err := Literal(e.X)
		if err != nil {
			return nil, err
		}
		switch x.(type) {
		case starlark.Int, starlark.Float:
			return starlark.Unary(e.Op, x)
		}
		return nil, fmt.Errorf("unary %s applied to %s", e.Op, x.Type())
	case *syntax.ListExpr:
		elems, err := literals(e.List)
		if err != nil {
			return nil, err
		}
		return starlark.NewList(elems), nil
	case *syntax.TupleExpr:
		elems, err := literals(e.List)
		if err != nil {
			return nil, err
		}
		return starlark.Tuple(elems), nil
	case *syntax.DictExpr:
		dict := starlark.NewDict(len(e.List))
		for _, item := range e.List {
			entry := item.(*syntax.DictEntry)
			k, err := Literal(entry.Key)
			if err != nil {
				return nil, err
			}
			v, err := Literal(entry.Value)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(k, v); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case *syntax.CallExpr:
		return nil, fmt.Errorf("call expressions are not literals")
	}
	return nil, fmt.Errorf("%s is not a literal", describe(e))
}

func literals(exprs []syntax.Expr) ([]starlark.Value, error) {
	out := make([]starlark.Value, len(exprs))
	for i, e := range exprs {
		v, err := Literal(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func describe(e syntax.Expr) string {
	switch e.(type) {
	case *syntax.BinaryExpr:
		return "binary expression"
	case *syntax.UnaryExpr:
		return "unary expression"
	case *syntax.DotExpr:
		return "attribute access"
	case *syntax.IndexExpr, *syntax.SliceExpr:
		return "index expression"
	case *syntax.Comprehension:
		return "comprehension"
	case *syntax.LambdaExpr:
		return "lambda"
	case *syntax.CondExpr:
		return "conditional expression"
	}
	return fmt.Sprintf("%T", e)
}
