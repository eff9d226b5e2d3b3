package activation

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/loreweave/loreweave/internal/domain"
)

// newConditionEnv creates the CEL environment rule conditions are
// compiled against. Conditions see the turn state, not the scan text:
// keyword matching already ran by the time a condition is checked.
func newConditionEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("turn", cel.IntType),
		cel.Variable("player_input", cel.StringType),
		cel.Variable("ai_response", cel.StringType),
		cel.Variable("activation_count", cel.IntType),
		cel.Variable("last_activated", cel.IntType),
		cel.Variable("memory_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// compileCondition compiles a rule's condition expression. Returns nil
// for rules without a condition.
func compileCondition(env *cel.Env, rule *domain.Rule) (cel.Program, error) {
	if rule.Condition == "" {
		return nil, nil
	}

	ast, issues := env.Compile(rule.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition for rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: condition must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}
	return program, nil
}

// evalCondition runs a compiled condition against the current turn
// state.
func evalCondition(program cel.Program, rule *domain.Rule, tc *domain.TurnContext, activations int) (bool, error) {
	out, _, err := program.Eval(map[string]any{
		"turn":             tc.TurnNumber,
		"player_input":     tc.PlayerInput,
		"ai_response":      tc.AIResponse,
		"activation_count": activations,
		"last_activated":   rule.LastActivated,
		"memory_count":     len(tc.Memories),
	})
	if err != nil {
		return false, err
	}

	if b, ok := out.(types.Bool); ok {
		return bool(b), nil
	}
	return false, fmt.Errorf("condition returned non-bool value")
}
