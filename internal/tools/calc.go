package tools

import (
	"context"
	"encoding/json"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// CalcArgs are the arguments for the calc tool.
type CalcArgs struct {
	Expr string `json:"expr"`
}

// CalcTool evaluates arithmetic expressions.
type CalcTool struct{}

func NewCalcTool() *CalcTool {
	return &CalcTool{}
}

func (t *CalcTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        CalcToolName,
		Description: "Evaluate an arithmetic expression. Supports + - * / %, parentheses and sqrt, abs, pow, floor, ceil, round, min, max.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"expr": map[string]interface{}{
					"type":        "string",
					"description": "Expression to evaluate, e.g. (2+3)*4",
					"minLength":   1,
				},
			},
			"required":             []string{"expr"},
			"additionalProperties": false,
		},
	}
}

func (t *CalcTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a CalcArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", NewToolErrorf(ErrInvalidParams, "parse arguments: %v", err)
	}
	v, err := Evaluate(a.Expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Evaluate computes the value of an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, NewToolError(ErrInvalidParams, "empty expression")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, NewToolErrorf(ErrInvalidParams, "invalid expression %q", expr)
	}
	v, err := eval(node)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, NewToolErrorf(ErrExecutionFailed, "result of %q is not a finite number", expr)
	}
	return v, nil
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, NewToolErrorf(ErrInvalidParams, "unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return -x, nil
		}
		return 0, NewToolErrorf(ErrInvalidParams, "unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		return binary(n.Op, x, y)
	case *ast.CallExpr:
		return call(n)
	case *ast.Ident:
		switch n.Name {
		case "pi":
			return math.Pi, nil
		case "e":
			return math.E, nil
		}
		return 0, NewToolErrorf(ErrInvalidParams, "unknown identifier %s", n.Name)
	}
	return 0, NewToolError(ErrInvalidParams, "unsupported expression")
}

func binary(op token.Token, x, y float64) (float64, error) {
	switch op {
	case token.ADD:
		return x + y, nil
	case token.SUB:
		return x - y, nil
	case token.MUL:
		return x * y, nil
	case token.QUO:
		if y == 0 {
			return 0, NewToolError(ErrExecutionFailed, "division by zero")
		}
		return x / y, nil
	case token.REM:
		if y == 0 {
			return 0, NewToolError(ErrExecutionFailed, "division by zero")
		}
		return math.Mod(x, y), nil
	}
	return 0, NewToolErrorf(ErrInvalidParams, "unsupported operator %s", op)
}

func call(n *ast.CallExpr) (float64, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return 0, NewToolError(ErrInvalidParams, "unsupported function call")
	}
	args := make([]float64, len(n.Args))
	for i, arg := range n.Args {
		v, err := eval(arg)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	want := func(count int) error {
		if len(args) != count {
			return NewToolErrorf(ErrInvalidParams, "%s takes %d argument(s), got %d", fn.Name, count, len(args))
		}
		return nil
	}

	var unary func(float64) float64
	switch fn.Name {
	case "sqrt":
		unary = math.Sqrt
	case "abs":
		unary = math.Abs
	case "floor":
		unary = math.Floor
	case "ceil":
		unary = math.Ceil
	case "round":
		unary = math.Round
	case "pow", "min", "max":
		if err := want(2); err != nil {
			return 0, err
		}
		switch fn.Name {
		case "pow":
			return math.Pow(args[0], args[1]), nil
		case "min":
			return math.Min(args[0], args[1]), nil
		default:
			return math.Max(args[0], args[1]), nil
		}
	default:
		return 0, NewToolErrorf(ErrInvalidParams, "unknown function %s", fn.Name)
	}
	if err := want(1); err != nil {
		return 0, err
	}
	return unary(args[0]), nil
}
