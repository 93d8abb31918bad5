// Package brain talks to hosted and local LLM completion APIs.
package brain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/abelbrown/pulse/internal/otel"
)

// ErrNoProvider is returned by Complete when no provider is configured.
var ErrNoProvider = errors.New("no LLM provider available")

const (
	// DefaultTimeout bounds one Complete call.
	DefaultTimeout = 90 * time.Second
	// DefaultMaxTokens is the completion budget for insight prompts.
	DefaultMaxTokens = 4096
)

// Provider is one completion backend.
type Provider interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (Response, error)
}

type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

type Response struct {
	Content string
	Model   string
}

// Chain sends each completion to its providers in order, preferred first,
// moving on to the next when one fails.
type Chain struct {
	providers []Provider
	preferred string
	timeout   time.Duration
	maxTokens int
	log       *otel.Logger
}

// NewChain returns an empty chain. timeout bounds a whole Complete call,
// across every provider it tries; zero disables it.
func NewChain(preferred string, timeout time.Duration) *Chain {
	return &Chain{preferred: preferred, timeout: timeout, maxTokens: DefaultMaxTokens}
}

// Add appends p if it is available and reports whether it was kept.
func (c *Chain) Add(p Provider) bool {
	if !p.Available() {
		return false
	}
	c.providers = append(c.providers, p)
	return true
}

// SetLogger attaches the sink for llm.* events.
func (c *Chain) SetLogger(l *otel.Logger) { c.log = l }

// Names lists providers in the order Complete tries them.
func (c *Chain) Names() []string {
	var names []string
	for _, p := range c.order() {
		names = append(names, p.Name())
	}
	return names
}

// Available reports whether Complete has anything to call.
func (c *Chain) Available() bool {
	return len(c.providers) > 0
}

func (c *Chain) order() []Provider {
	out := slices.Clone(c.providers)
	if i := slices.IndexFunc(out, func(p Provider) bool { return p.Name() == c.preferred }); i > 0 {
		p := out[i]
		out = slices.Delete(out, i, i+1)
		out = slices.Insert(out, 0, p)
	}
	return out
}

// Complete returns the first successful completion of prompt. Later
// providers only get what is left of the timeout. When every provider fails
// the errors are joined, each prefixed with its provider.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProvider
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var errs []error
	for _, p := range c.order() {
		text, err := c.attempt(ctx, p, prompt)
		if err == nil {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

func (c *Chain) attempt(ctx context.Context, p Provider, prompt string) (string, error) {
	c.log.Debug(otel.KindLLMRequest, "brain", fmt.Sprintf("%s: sending %d-byte prompt", p.Name(), len(prompt)))
	start := time.Now()
	resp, err := p.Generate(ctx, Request{Prompt: prompt, MaxTokens: c.maxTokens})
	e := otel.Event{
		Level:    otel.LevelInfo,
		Kind:     otel.KindLLMRequest,
		Comp:     "brain",
		Provider: p.Name(),
		Dur:      time.Since(start),
	}
	if err != nil {
		e.Level, e.Kind, e.Err = otel.LevelError, otel.KindLLMError, err.Error()
		c.log.Emit(e)
		return "", err
	}
	e.Count, e.Msg = len(resp.Content), resp.Model
	c.log.Emit(e)
	return resp.Content, nil
}
