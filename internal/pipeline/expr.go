// Package pipeline provides the component graph engine that composes
// capability components into request-specific executions.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// maxExpressionLength bounds predicate size.
const maxExpressionLength = 4096

// Evaluator provides safe predicate evaluation with caching. Predicates are
// compiled once and cached for reuse. Compilation is done without a typed
// environment because pipeline state is dynamic; unknown identifiers
// surface as runtime errors.
type Evaluator struct {
	compiled map[string]*vm.Program
	mu       sync.RWMutex
}

// NewEvaluator creates a new predicate evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		compiled: make(map[string]*vm.Program),
	}
}

// Compile parses and compiles a predicate, caching the program. Used at
// validation time so malformed predicates fail registration, not execution.
func (e *Evaluator) Compile(expression string) error {
	if len(expression) > maxExpressionLength {
		return fmt.Errorf("expression exceeds maximum length of %d characters", maxExpressionLength)
	}

	e.mu.RLock()
	_, ok := e.compiled[expression]
	e.mu.RUnlock()
	if ok {
		return nil
	}

	prog, err := expr.Compile(expression)
	if err != nil {
		return fmt.Errorf("compile expression %q: %w", expression, err)
	}

	e.mu.Lock()
	e.compiled[expression] = prog
	e.mu.Unlock()
	return nil
}

// EvaluateBool evaluates a predicate against an environment and coerces
// the result to a boolean.
func (e *Evaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	if err := e.Compile(expression); err != nil {
		return false, err
	}

	e.mu.RLock()
	prog := e.compiled[expression]
	e.mu.RUnlock()

	result, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}

	switch v := result.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, result)
	}
}

// Identifiers returns the top-level identifiers referenced by a predicate.
// Used by graph validation to check that predicates only read keys some
// upstream node is expected to have written.
func Identifiers(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", expression, err)
	}

	collector := &identCollector{seen: make(map[string]bool)}
	ast.Walk(&tree.Node, collector)
	return collector.names, nil
}

type identCollector struct {
	seen  map[string]bool
	names []string
}

func (c *identCollector) Visit(node *ast.Node) {
	ident, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if c.seen[ident.Value] {
		return
	}
	c.seen[ident.Value] = true
	c.names = append(c.names, ident.Value)
}
