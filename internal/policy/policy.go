// Package policy chooses each trainer's action: a reasoning service under a
// strict time and format contract, with the rule-based ladder as the
// fallback for every kind of failure.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
	"github.com/talgya/automon-world/internal/llm"
)

// DefaultTimeout bounds one reasoning call.
const DefaultTimeout = 8 * time.Second

// Kind classifies why the reasoning path failed.
type Kind uint8

const (
	MissingCredentials Kind = iota + 1
	BadStatus
	ParseFailure
	Transport
)

// Cause is the annotation written into a fallback decision's reasoning.
func (k Kind) Cause() string {
	switch k {
	case MissingCredentials:
		return "missing credentials"
	case BadStatus:
		return "non-OK status"
	case ParseFailure:
		return "parse failure"
	default:
		return "transport error"
	}
}

func (k Kind) String() string {
	switch k {
	case MissingCredentials:
		return "missing_credentials"
	case BadStatus:
		return "bad_status"
	case ParseFailure:
		return "parse_failure"
	default:
		return "transport"
	}
}

// PolicyError is a failed reasoning call, kept as data so the fallback can
// say why it ran.
type PolicyError struct {
	Kind Kind
	Err  error
}

func (e *PolicyError) Error() string {
	if e.Err == nil {
		return "policy: " + e.Kind.Cause()
	}
	return fmt.Sprintf("policy: %s: %v", e.Kind.Cause(), e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// Classify maps a reasoning or parsing error to its kind.
func Classify(err error) *PolicyError {
	var se *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return &PolicyError{Kind: MissingCredentials, Err: err}
	case errors.As(err, &se):
		return &PolicyError{Kind: BadStatus, Err: err}
	case errors.Is(err, llm.ErrMalformed):
		return &PolicyError{Kind: ParseFailure, Err: err}
	default:
		return &PolicyError{Kind: Transport, Err: err}
	}
}

// Recover runs the fallback ladder for a failed call and annotates the
// reasoning with the failure cause.
func Recover(cat *catalog.Catalog, perr *PolicyError, c *agents.Context, rng *entropy.Source) agents.Decision {
	d := agents.Fallback(cat, c, rng)
	d.Reasoning = fmt.Sprintf("[fallback: %s] %s", perr.Kind.Cause(), d.Reasoning)
	return d
}

// Source tells observers where a decision came from.
type Source string

const (
	SourceReasoner Source = "reasoner"
	SourceFallback Source = "fallback"
)

// Observer is notified of every decision. Metrics hook in here.
type Observer interface {
	ObserveDecision(source Source, kind string, latency time.Duration)
}

// Policy decides trainer actions.
type Policy struct {
	Catalog  *catalog.Catalog
	Reasoner llm.Reasoner // nil means no credentials
	Timeout  time.Duration
	Observer Observer
}

// New creates a Policy. A nil reasoner makes every decision a fallback.
func New(cat *catalog.Catalog, r llm.Reasoner, timeout time.Duration) *Policy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Policy{Catalog: cat, Reasoner: r, Timeout: timeout}
}

// Decide returns an action for the trainer in c. It never fails: any
// reasoning failure is recovered with the fallback ladder.
func (p *Policy) Decide(ctx context.Context, c *agents.Context, rng *entropy.Source) agents.Decision {
	start := time.Now()
	d, perr := p.ask(ctx, c)
	if perr == nil {
		p.observe(SourceReasoner, "", start)
		return d
	}
	slog.Debug("policy fallback",
		"trainer", c.Trainer.ID,
		"cause", perr.Kind.String(),
		"err", perr.Err,
	)
	p.observe(SourceFallback, perr.Kind.String(), start)
	return Recover(p.Catalog, perr, c, rng)
}

// ask runs the reasoning path only.
func (p *Policy) ask(ctx context.Context, c *agents.Context) (agents.Decision, *PolicyError) {
	if p.Reasoner == nil {
		return agents.Decision{}, &PolicyError{Kind: MissingCredentials, Err: llm.ErrNotConfigured}
	}
	system, user, err := llm.BuildDecisionPrompt(c)
	if err != nil {
		return agents.Decision{}, &PolicyError{Kind: ParseFailure, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	text, err := p.Reasoner.Complete(callCtx, system, user)
	if err != nil {
		return agents.Decision{}, Classify(err)
	}
	d, err := llm.ParseDecision(text)
	if err != nil {
		return agents.Decision{}, Classify(err)
	}
	return d, nil
}

func (p *Policy) observe(source Source, kind string, start time.Time) {
	if p.Observer != nil {
		p.Observer.ObserveDecision(source, kind, time.Since(start))
	}
}
