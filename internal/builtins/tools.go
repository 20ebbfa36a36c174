package builtins

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/expr-lang/expr"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// ToolKeyPrefix is the key prefix of dynamic tool handlers.
const ToolKeyPrefix = "tool."

type toolFunc func(ctx context.Context, args map[string]any, deps Deps) (any, error)

var tools = []struct {
	name        string
	description string
	run         toolFunc
}{
	{"echo", "Return the given arguments unchanged", toolEcho},
	{"time", "Current time, optionally in the IANA zone given as tz", toolTime},
	{"calc", "Evaluate an arithmetic expression given as expr", toolCalc},
}

// RegisterTools registers the tool.* handlers that tool_run dispatches to.
func RegisterTools(reg *registry.Registry, deps Deps) error {
	for _, t := range tools {
		t := t
		err := reg.Register(registry.Entry{
			Key:         ToolKeyPrefix + t.name,
			Module:      "tools",
			Description: t.description,
			Handler: registry.Typed(func(ctx context.Context, p normalize.ToolParams, _ registry.HandlerContext) (domain.ToolOutput, error) {
				out, err := t.run(ctx, p.Args, deps)
				if err != nil {
					return domain.ToolOutput{}, err
				}
				return domain.ToolOutput{Name: t.name, Output: out}, nil
			}),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func toolEcho(_ context.Context, args map[string]any, _ Deps) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}

func toolTime(_ context.Context, args map[string]any, deps Deps) (any, error) {
	now := deps.now()
	if tz, _ := args["tz"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, invalid("unknown time zone %q", tz)
		}
		now = now.In(loc)
	}
	return map[string]any{
		"time": now.Format(time.RFC3339),
		"unix": now.Unix(),
		"zone": now.Location().String(),
	}, nil
}

func toolCalc(_ context.Context, args map[string]any, _ Deps) (any, error) {
	src, _ := args["expr"].(string)
	if strings.TrimSpace(src) == "" {
		return nil, invalid("calc needs expr")
	}
	v, err := evalExpr(src)
	if err != nil {
		return nil, invalid("calc: %v", err)
	}
	return map[string]any{"expr": src, "result": v}, nil
}

// evalExpr evaluates a numeric expression with no variables or builtins.
// Results that do not fit a JSON number are rejected.
func evalExpr(s string) (float64, error) {
	program, err := expr.Compile(s,
		expr.Env(map[string]any{}),
		expr.DisableAllBuiltins(),
		expr.AsFloat64(),
		expr.MaxNodes(256),
	)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, err
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("result is %T, not a number", out)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result out of range")
	}
	return v, nil
}
