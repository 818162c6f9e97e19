// Package service implements the request/response layer: a caller issues a
// request stamped with its arrival time, the serving node's loop drains and
// answers it, and the caller polls the returned handle until it is answered
// or, with a deadline, until the caller's clock passes that deadline.
package service

import (
	"sync"

	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/timeordered"
)

// pending is one in-flight request awaiting a response.
type pending[Resp any] struct {
	respCh chan Resp
	errCh  chan error
}

// Endpoint is a named request/response service of request type Req and
// response type Resp, owned and served by exactly one node.
type Endpoint[Req any, Resp any] struct {
	name string

	mu      sync.Mutex
	inbound *timeordered.Data[inboundRequest[Req, Resp]]
}

type inboundRequest[Req any, Resp any] struct {
	req     Req
	arrived simtime.Time
	pend    *pending[Resp]
}

// NewEndpoint creates an endpoint named name.
func NewEndpoint[Req any, Resp any](name string) *Endpoint[Req, Resp] {
	return &Endpoint[Req, Resp]{
		name:    name,
		inbound: timeordered.New[inboundRequest[Req, Resp]](false),
	}
}

// Name returns the endpoint's registered name, used by Registry lookups
// and in failure.NoSuchEndpoint errors.
func (e *Endpoint[Req, Resp]) Name() string { return e.name }

// NextInboundTime is the wakeup source the serving node folds into its
// t_next computation: the earliest arrived-but-unserved request.
func (e *Endpoint[Req, Resp]) NextInboundTime() simtime.Time {
	return e.inbound.MinTime()
}

// Call enqueues a request arriving at `now` and returns a Call handle the
// caller polls (TryResult/TryResultAt) for the response. Call itself never
// blocks, and the scheduler does not suspend a caller's loop while one of
// its calls is unanswered; the caller decides whether to wait.
func (e *Endpoint[Req, Resp]) Call(now simtime.Time, req Req) *Call[Resp] {
	return e.CallWithDeadline(now, req, simtime.Inf)
}

// CallWithDeadline is Call with an absolute simulated-time deadline: once
// the caller's clock passes deadline without an answer, TryResultAt
// completes the call with a Service.Timeout error.
func (e *Endpoint[Req, Resp]) CallWithDeadline(now simtime.Time, req Req, deadline simtime.Time) *Call[Resp] {
	pend := &pending[Resp]{respCh: make(chan Resp, 1), errCh: make(chan error, 1)}
	e.mu.Lock()
	e.inbound.Insert(now, inboundRequest[Req, Resp]{req: req, arrived: now, pend: pend})
	e.mu.Unlock()
	return &Call[Resp]{pend: pend, deadline: deadline}
}

// Serve pops the earliest request due at or before now, if any, for the
// owning node's loop to answer with Reply or Fail.
func (e *Endpoint[Req, Resp]) Serve(now simtime.Time) (req Req, arrived simtime.Time, handle *ResponseHandle[Resp], ok bool) {
	v, at, popped := e.inbound.PopEarliest(now)
	if !popped {
		return req, 0, nil, false
	}
	return v.req, at, &ResponseHandle[Resp]{pend: v.pend}, true
}

// Call is the caller-side handle for an in-flight request.
type Call[Resp any] struct {
	pend     *pending[Resp]
	deadline simtime.Time
}

// TryResult returns the response if the server has already answered.
func (c *Call[Resp]) TryResult() (resp Resp, err error, done bool) {
	select {
	case resp = <-c.pend.respCh:
		return resp, nil, true
	case err = <-c.pend.errCh:
		return resp, err, true
	default:
		return resp, nil, false
	}
}

// TryResultAt is TryResult with deadline enforcement: an unanswered call
// whose deadline has passed by the caller's clock now completes with a
// Service.Timeout error.
func (c *Call[Resp]) TryResultAt(now simtime.Time) (resp Resp, err error, done bool) {
	if resp, err, done = c.TryResult(); done {
		return resp, err, done
	}
	if !simtime.IsInf(c.deadline) && simtime.Less(c.deadline, now) {
		c.Timeout()
		return c.TryResult()
	}
	return resp, nil, false
}

// Deadline returns the call's absolute timeout, simtime.Inf when none was
// set. The caller's loop folds this into its t_next so the timeout fires
// at the right simulated time even when nothing else is due.
func (c *Call[Resp]) Deadline() simtime.Time { return c.deadline }

// Timeout fails the call with a Service/Timeout error if it has not
// already completed, called once the caller's timeout deadline elapses.
func (c *Call[Resp]) Timeout() {
	select {
	case c.pend.errCh <- failure.New(failure.ServiceTimeout, "request timed out"):
	default:
	}
}

// ResponseHandle is the server-side handle used to answer one request.
type ResponseHandle[Resp any] struct {
	pend *pending[Resp]
}

// Reply answers the request successfully.
func (h *ResponseHandle[Resp]) Reply(resp Resp) {
	h.pend.respCh <- resp
}

// Fail answers the request with an error (e.g. Service/Unreachable).
func (h *ResponseHandle[Resp]) Fail(err error) {
	h.pend.errCh <- err
}

// Registry is a per-simulation set of registered endpoint names, used to
// resolve Service/NoSuchEndpoint at call time. It does not record which
// node owns an endpoint.
type Registry struct {
	mu    sync.RWMutex
	names map[string]bool
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register records that an endpoint named name exists.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = true
}

// Resolve returns a Service/NoSuchEndpoint error if name was never
// registered.
func (r *Registry) Resolve(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.names[name] {
		return failure.New(failure.ServiceNoSuchEndpoint, "no such endpoint: "+name)
	}
	return nil
}

// Server type-erases an Endpoint[Req, Resp] plus its handling function
// into the two operations a node's execution loop needs: a wakeup-time
// probe and a drain step.
type Server struct {
	next  func(now simtime.Time) simtime.Time
	drain func(now simtime.Time)
}

// NewServer builds a Server around ep, answering every due request with
// handle. A handle error fails the call (e.g. a caller-visible
// Service/Unreachable); a nil error replies with the returned value.
func NewServer[Req any, Resp any](ep *Endpoint[Req, Resp], handle func(now simtime.Time, sender Req) (Resp, error)) *Server {
	return &Server{
		next: func(simtime.Time) simtime.Time { return ep.NextInboundTime() },
		drain: func(now simtime.Time) {
			for {
				req, arrived, h, ok := ep.Serve(now)
				if !ok {
					return
				}
				resp, err := handle(arrived, req)
				if err != nil {
					h.Fail(err)
					continue
				}
				h.Reply(resp)
			}
		},
	}
}

// NextInboundTime reports the earliest pending request time, the wakeup
// source folded into the owning node's t_next.
func (s *Server) NextInboundTime(now simtime.Time) simtime.Time {
	return s.next(now)
}

// Drain answers every request due at or before now.
func (s *Server) Drain(now simtime.Time) {
	s.drain(now)
}
