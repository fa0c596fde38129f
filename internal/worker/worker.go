// Package worker provides the asynchronous host boundary for lineage
// builds. Hosts submit requests carrying an opaque request id and read
// responses in completion order; the id lets them discard stale results.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/pkg/lineage"
)

// DefaultPoolSize bounds concurrent builds when the caller does not
// choose a size.
const DefaultPoolSize = 4

// Request is one build submission from the host.
type Request struct {
	RequestID      string          `json:"requestId"`
	HistoryEntries []history.Entry `json:"historyEntries"`
	Options        lineage.Options `json:"options"`
}

// Response carries the outcome of one request back to the host. Ok is
// false only when the build failed catastrophically; Error then holds
// the stringified cause.
type Response struct {
	RequestID string          `json:"requestId"`
	Ok        bool            `json:"ok"`
	Result    *lineage.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Pool runs lineage builds on a bounded number of workers fed by a
// request channel. Responses are delivered on a separate channel in
// completion order, which is independent of submission order.
type Pool struct {
	logger    *slog.Logger
	size      int
	requests  chan Request
	responses chan Response
	build     func([]lineage.Entry, lineage.Options) *lineage.Result
}

// NewPool creates a pool with the given concurrency bound.
// If size < 1, DefaultPoolSize is used. If logger is nil, a discard
// logger is used.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		logger:    logger,
		size:      size,
		requests:  make(chan Request, size),
		responses: make(chan Response, size),
		build:     lineage.Build,
	}
}

// Run starts the workers and blocks until the request channel is closed
// and drained, or the context is cancelled. The responses channel is
// closed on return; responses still undelivered at cancellation are
// dropped, matching the host contract that stale results are discarded.
// Run must be called at most once.
func (p *Pool) Run(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	for i := 0; i < p.size; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-egctx.Done():
					return nil
				case req, ok := <-p.requests:
					if !ok {
						return nil
					}
					select {
					case p.responses <- p.Handle(req):
					case <-egctx.Done():
						return nil
					}
				}
			}
		})
	}

	err := eg.Wait()
	close(p.responses)
	return err
}

// Submit queues a request for processing. It blocks until a worker can
// accept the request or the context is cancelled.
func (p *Pool) Submit(ctx context.Context, req Request) error {
	select {
	case p.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new requests. Run returns once the queued
// requests have been processed.
func (p *Pool) Close() {
	close(p.requests)
}

// Responses returns the channel on which build outcomes are delivered.
// It is closed when Run returns.
func (p *Pool) Responses() <-chan Response {
	return p.responses
}

// Handle executes one request synchronously. It never panics: a
// catastrophic failure produces an ok:false response with the cause
// stringified in the error field. The caller's request id is echoed on
// the response; when the request carries none, an id is generated so
// the response can still be correlated.
func (p *Pool) Handle(req Request) (resp Response) {
	id := req.RequestID
	if id == "" {
		id = uuid.New().String()
	}
	resp = Response{RequestID: id}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("build panicked", "requestId", id, "panic", r)
			resp = Response{
				RequestID: id,
				Ok:        false,
				Error:     fmt.Sprintf("build panicked: %v", r),
			}
		}
	}()

	p.logger.Debug("building lineage graph", "requestId", id, "entries", len(req.HistoryEntries))

	result := p.build(history.ToLineageEntries(req.HistoryEntries), req.Options)
	resp.Ok = true
	resp.Result = result
	return resp
}
