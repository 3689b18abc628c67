// Package prolog implements inference.Engine on an embedded Prolog
// interpreter. Fact atoms become the dynamic predicates male/1, female/1,
// parent/2 and ethnicity/3; catalog functions are predicates named after
// the function ('get-siblings'/2) whose last argument carries the answer.
package prolog

import (
	"context"
	_ "embed"
	"strings"

	"github.com/cockroachdb/errors"
	ichiban "github.com/ichiban/prolog"

	"github.com/cognicore/kinship/pkg/kinship/atom"
)

// FamilyRules is the rule program answering every catalog function.
//
//go:embed family.pl
var FamilyRules string

const bootstrap = `
:- dynamic(male/1).
:- dynamic(female/1).
:- dynamic(parent/2).
:- dynamic(ethnicity/3).

assert_new(F) :- call(F), !.
assert_new(F) :- assertz(F).

fraction_text(F, T) :- number_chars(F, Cs), atom_chars(T, Cs).
ethnicity_fact(N, G, T) :- ethnicity(N, G, F), fraction_text(F, T).
`

// Engine is a Prolog-backed reasoning engine.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	p *ichiban.Interpreter
}

// New creates an engine with the fact predicates declared and no rules.
func New() (*Engine, error) {
	p := ichiban.New(nil, nil)
	if err := p.Exec(bootstrap); err != nil {
		return nil, errors.Wrap(err, "prolog bootstrap")
	}
	return &Engine{p: p}, nil
}

// LoadRules consults a Prolog program.
func (e *Engine) LoadRules(ctx context.Context, rules string) error {
	if err := e.p.ExecContext(ctx, rules); err != nil {
		return errors.Wrap(err, "load rules")
	}
	return nil
}

// AddFacts asserts each fact unless it is already known.
func (e *Engine) AddFacts(ctx context.Context, facts ...atom.Fact) error {
	for _, f := range facts {
		term, err := toTerm(f)
		if err != nil {
			return err
		}
		if err := e.once(ctx, "assert_new("+term+")."); err != nil {
			return errors.Wrapf(err, "assert %s", f)
		}
	}
	return nil
}

// Reset retracts every fact.
func (e *Engine) Reset(ctx context.Context) error {
	return e.once(ctx, "retractall(male(_)), retractall(female(_)), retractall(parent(_, _)), retractall(ethnicity(_, _, _)).")
}

// Solve runs 'function'(args..., R) and collects every binding of R.
func (e *Engine) Solve(ctx context.Context, function string, args []string) ([]string, error) {
	terms := make([]string, 0, len(args)+1)
	for _, a := range args {
		terms = append(terms, quote(a))
	}
	terms = append(terms, "R")
	goal := quote(function) + "(" + strings.Join(terms, ", ") + ")."

	out := []string{}
	err := e.each(ctx, goal, func(sols *ichiban.Solutions) error {
		var s struct {
			R string `prolog:"R"`
		}
		if err := sols.Scan(&s); err != nil {
			return err
		}
		out = append(out, s.R)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "solve %s", goal)
	}
	return out, nil
}

// Facts lists the asserted facts grouped by predicate.
func (e *Engine) Facts(ctx context.Context) ([]atom.Fact, error) {
	var out []atom.Fact
	for _, g := range []atom.Predicate{atom.Male, atom.Female} {
		goal := strings.ToLower(string(g)) + "(N)."
		err := e.each(ctx, goal, func(sols *ichiban.Solutions) error {
			var s struct {
				N string `prolog:"N"`
			}
			if err := sols.Scan(&s); err != nil {
				return err
			}
			out = append(out, atom.NewGender(g, s.N))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err := e.each(ctx, "parent(P, C).", func(sols *ichiban.Solutions) error {
		var s struct {
			P string `prolog:"P"`
			C string `prolog:"C"`
		}
		if err := sols.Scan(&s); err != nil {
			return err
		}
		out = append(out, atom.NewParent(s.P, s.C))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = e.each(ctx, "ethnicity_fact(N, G, F).", func(sols *ichiban.Solutions) error {
		var s struct {
			N string `prolog:"N"`
			G string `prolog:"G"`
			F string `prolog:"F"`
		}
		if err := sols.Scan(&s); err != nil {
			return err
		}
		out = append(out, atom.Fact{Predicate: atom.Ethnicity, Args: []string{s.N, s.G, s.F}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) each(ctx context.Context, goal string, fn func(*ichiban.Solutions) error) error {
	sols, err := e.p.QueryContext(ctx, goal)
	if err != nil {
		return err
	}
	defer sols.Close()
	for sols.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(sols); err != nil {
			return err
		}
	}
	if err := sols.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) once(ctx context.Context, goal string) error {
	sols, err := e.p.QueryContext(ctx, goal)
	if err != nil {
		return err
	}
	defer sols.Close()
	if !sols.Next() {
		if err := sols.Err(); err != nil {
			return err
		}
		return errors.Newf("goal failed: %s", goal)
	}
	return nil
}

func toTerm(f atom.Fact) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	name := strings.ToLower(string(f.Predicate))
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = quote(a)
	}
	if f.Predicate == atom.Ethnicity {
		v, _ := f.Fraction()
		args[2] = atom.FormatFraction(v)
	}
	return name + "(" + strings.Join(args, ", ") + ")", nil
}

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + escaper.Replace(s) + "'"
}
