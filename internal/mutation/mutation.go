// Package mutation tracks the lifecycle of state-changing calls.
package mutation

import (
	"context"
	"sync"
)

// Status is the position of a Gateway in its call lifecycle.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusSettled:
		return "settled"
	}
	return "unknown"
}

// Func performs one call against the backend.
type Func[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Observer is notified of every status transition.
type Observer func(name string, status Status)

type callOptions[Resp any] struct {
	onSuccess  func(Resp)
	onError    func(error)
	onSettled  func()
	throwError bool
}

// Option configures a single Mutate call.
type Option[Resp any] func(*callOptions[Resp])

func OnSuccess[Resp any](fn func(Resp)) Option[Resp] {
	return func(o *callOptions[Resp]) { o.onSuccess = fn }
}

func OnError[Resp any](fn func(error)) Option[Resp] {
	return func(o *callOptions[Resp]) { o.onError = fn }
}

func OnSettled[Resp any](fn func()) Option[Resp] {
	return func(o *callOptions[Resp]) { o.onSettled = fn }
}

// ThrowError makes Mutate return the failure after recording it.
func ThrowError[Resp any]() Option[Resp] {
	return func(o *callOptions[Resp]) { o.throwError = true }
}

// Gateway wraps one named operation with status bookkeeping. Concurrent
// Mutate calls are neither queued nor deduplicated; the latest transition
// wins.
type Gateway[Req, Resp any] struct {
	name     string
	fn       Func[Req, Resp]
	observer Observer

	mu      sync.RWMutex
	status  Status
	data    Resp
	hasData bool
	err     error
}

// New returns an idle Gateway for fn. observer may be nil.
func New[Req, Resp any](name string, fn Func[Req, Resp], observer Observer) *Gateway[Req, Resp] {
	return &Gateway[Req, Resp]{name: name, fn: fn, observer: observer}
}

func (g *Gateway[Req, Resp]) Name() string { return g.name }

// Mutate performs exactly one call of the wrapped operation, moving through
// pending, then success or error, and finally settled. Failures are kept in
// Err; they are returned only with ThrowError.
func (g *Gateway[Req, Resp]) Mutate(ctx context.Context, req Req, opts ...Option[Resp]) (Resp, error) {
	var o callOptions[Resp]
	for _, opt := range opts {
		opt(&o)
	}

	var zero Resp
	g.transition(func() {
		g.data, g.hasData, g.err = zero, false, nil
		g.status = StatusPending
	})

	resp, err := g.fn(ctx, req)
	defer func() {
		g.transition(func() { g.status = StatusSettled })
		if o.onSettled != nil {
			o.onSettled()
		}
	}()

	if err != nil {
		g.transition(func() {
			g.err = err
			g.status = StatusError
		})
		if o.onError != nil {
			o.onError(err)
		}
		if o.throwError {
			return zero, err
		}
		return zero, nil
	}

	g.transition(func() {
		g.data, g.hasData = resp, true
		g.status = StatusSuccess
	})
	if o.onSuccess != nil {
		o.onSuccess(resp)
	}
	return resp, nil
}

func (g *Gateway[Req, Resp]) transition(apply func()) {
	g.mu.Lock()
	apply()
	s := g.status
	g.mu.Unlock()
	if g.observer != nil {
		g.observer(g.name, s)
	}
}

func (g *Gateway[Req, Resp]) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Data returns the result of the last successful call, if any.
func (g *Gateway[Req, Resp]) Data() (Resp, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data, g.hasData
}

// Err returns the failure of the last call, or nil.
func (g *Gateway[Req, Resp]) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

func (g *Gateway[Req, Resp]) IsIdle() bool    { return g.Status() == StatusIdle }
func (g *Gateway[Req, Resp]) IsPending() bool { return g.Status() == StatusPending }
func (g *Gateway[Req, Resp]) IsSuccess() bool { return g.Status() == StatusSuccess }
func (g *Gateway[Req, Resp]) IsError() bool   { return g.Status() == StatusError }
func (g *Gateway[Req, Resp]) IsSettled() bool { return g.Status() == StatusSettled }
