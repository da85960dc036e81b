package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/gosuda/chatflow/internal/agent"
)

const calculatorMaxSteps = 100_000

// Calculator evaluates arithmetic expressions in a Starlark sandbox. The
// math module (math.sqrt, math.pi, ...) is available; nothing else is.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string {
	return "Evaluate an arithmetic expression such as (3 + 4) * 2 / 7 or math.sqrt(2). Returns the numeric result."
}

func (c *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression to evaluate. Use math.<fn> for functions.",
			},
		},
		"required": []string{"expression"},
	}
}

func (c *Calculator) Call(ctx context.Context, input json.RawMessage) ([]agent.ToolResultContent, error) {
	var args struct {
		Expression string `json:"expression"`
		Expr       string `json:"expr"`
	}
	if err := agent.DecodeInput(input, &args); err != nil {
		return nil, fmt.Errorf("tools.Calculator.Call: decode input: %w", err)
	}

	expr := strings.TrimSpace(args.Expression)
	if expr == "" {
		expr = strings.TrimSpace(args.Expr)
	}
	if expr == "" {
		return nil, errors.New("tools.Calculator.Call: expression is required")
	}

	value, err := c.Evaluate(ctx, expr)
	if err != nil {
		return nil, err
	}

	return []agent.ToolResultContent{agent.TextContent(value)}, nil
}

// Evaluate returns the printed result of expr.
func (c *Calculator) Evaluate(ctx context.Context, expr string) (string, error) {
	thread := &starlark.Thread{Name: "calculator"}
	thread.SetMaxExecutionSteps(calculatorMaxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	env := starlark.StringDict{
		"math": starmath.Module,
	}

	val, err := starlark.Eval(thread, "<expression>", expr, env)
	if err != nil {
		return "", fmt.Errorf("tools.Calculator.Evaluate: %w", err)
	}

	switch val.(type) {
	case starlark.Int, starlark.Float, starlark.Bool:
		return val.String(), nil
	default:
		return "", fmt.Errorf("tools.Calculator.Evaluate: result is %s, not a number", val.Type())
	}
}
