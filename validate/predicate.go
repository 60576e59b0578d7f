// Package validate implements the milestone/minefield evaluation shared
// by scheduled validators, agent-action validators, and condition-check
// events (spec §4.4). Predicates are compiled expr-lang/expr programs
// run against a state snapshot the engine assembles each tick, the way
// pantalk-pantalk's agent.Runner compiles a "when" expression once and
// re-evaluates it against a per-event environment map.
package validate

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate is a compiled boolean expression evaluated against a
// map[string]any state snapshot.
type Predicate struct {
	Source  string
	program *vm.Program
}

// Compile parses and type-checks src as a boolean expression. Compile
// errors are reported immediately (at scenario-load time) rather than at
// first evaluation, matching agent.NewRunner's "invalid when expression"
// failure mode.
func Compile(src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid predicate %q: %w", src, err)
	}
	return &Predicate{Source: src, program: program}, nil
}

// Eval runs the predicate against state. A non-boolean result (should be
// unreachable given expr.AsBool() at Compile time) is reported as an
// error rather than silently coerced.
func (p *Predicate) Eval(state map[string]any) (bool, error) {
	result, err := expr.Run(p.program, state)
	if err != nil {
		return false, fmt.Errorf("predicate %q: %w", p.Source, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("predicate %q did not evaluate to a boolean", p.Source)
	}
	return b, nil
}

// CompileSet compiles a name -> expression-source mapping into a name ->
// *Predicate mapping, stopping at the first compile error.
func CompileSet(sources map[string]string) (map[string]*Predicate, error) {
	out := make(map[string]*Predicate, len(sources))
	for name, src := range sources {
		p, err := Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}
