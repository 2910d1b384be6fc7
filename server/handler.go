package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ProcessingPolicy selects how requests on one connection are dispatched.
type ProcessingPolicy int

const (
	// PolicySequential runs strictly one request at a time: the next
	// read does not start until the previous response is written.
	PolicySequential ProcessingPolicy = iota
	// PolicyParallel admits up to maxParallelRequests concurrent
	// requests per connection; responses may be written out of order.
	PolicyParallel
)

// MessageHandler processes one request. A returned error is classified by
// the connection handler; handlers signal recoverable input problems with
// KindBadRequest so the connection survives.
type MessageHandler func(ctx context.Context, req *Request, connCtx ConnectionContext) (Response, error)

// ConnectionHandler drives client connections from handshake to close.
// Handler maps are immutable once ProcessConnection has been called.
type ConnectionHandler struct {
	log *zap.Logger

	policy      ProcessingPolicy
	maxParallel int64
	grace       time.Duration

	getHandlers  map[string]MessageHandler
	postHandlers map[string]MessageHandler
	wsHandler    MessageHandler

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnectionHandler builds a handler with the given dispatch policy.
// maxParallel bounds in-flight requests per connection under
// PolicyParallel; zero means unbounded.
func NewConnectionHandler(policy ProcessingPolicy, maxParallel int, log *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		log:          log,
		policy:       policy,
		maxParallel:  int64(maxParallel),
		grace:        5 * time.Second,
		getHandlers:  make(map[string]MessageHandler),
		postHandlers: make(map[string]MessageHandler),
		stopCh:       make(chan struct{}),
	}
}

// OnGet registers a handler for a GET target.
func (h *ConnectionHandler) OnGet(target string, handler MessageHandler) {
	h.getHandlers[target] = handler
}

// OnPost registers a handler for a POST target.
func (h *ConnectionHandler) OnPost(target string, handler MessageHandler) {
	h.postHandlers[target] = handler
}

// OnWs registers the handler for WebSocket messages.
func (h *ConnectionHandler) OnWs(handler MessageHandler) {
	h.wsHandler = handler
}

// Stop fires the one-shot shutdown signal. Every in-flight suspension
// point observes it and unwinds with a cancellation error.
func (h *ConnectionHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// ProcessConnection runs the request/response loop for one connection
// until EOF, a fatal error, or Stop. The connection is closed on return.
func (h *ConnectionHandler) ProcessConnection(ctx context.Context, conn Connection) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-h.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	switch h.policy {
	case PolicyParallel:
		h.parallelLoop(ctx, conn)
	default:
		h.sequentialLoop(ctx, conn)
	}

	if err := conn.Close(); err != nil {
		h.log.Debug("close connection", zap.Error(err))
	}
}

func (h *ConnectionHandler) sequentialLoop(ctx context.Context, conn Connection) {
	for {
		req, err := conn.Read(ctx)
		if err != nil {
			if h.handleError(ctx, err, conn) {
				return
			}
			continue
		}

		resp, err := h.handleRequest(ctx, conn.Context(), req)
		if err != nil {
			if h.handleError(ctx, err, conn) {
				return
			}
			continue
		}

		if err := conn.Write(ctx, resp); err != nil {
			if h.handleError(ctx, err, conn) {
				return
			}
		}
	}
}

func (h *ConnectionHandler) parallelLoop(ctx context.Context, conn Connection) {
	bound := h.maxParallel
	if bound <= 0 {
		bound = math.MaxInt64
	}
	sem := semaphore.NewWeighted(bound)

	var writeMu sync.Mutex
	var wg sync.WaitGroup

	for {
		// a full semaphore suspends the reader until a slot frees
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		req, err := conn.Read(ctx)
		if err != nil {
			sem.Release(1)
			if h.handleError(ctx, err, conn) {
				break
			}
			continue
		}

		wg.Add(1)
		go func(req *Request) {
			defer wg.Done()
			defer sem.Release(1)

			resp, err := h.handleRequest(ctx, conn.Context(), req)
			// the final response is still written after Stop, within the
			// grace period below
			writeCtx := context.WithoutCancel(ctx)
			if err != nil {
				writeMu.Lock()
				h.handleError(writeCtx, err, conn)
				writeMu.Unlock()
				return
			}
			writeMu.Lock()
			if err := conn.Write(writeCtx, resp); err != nil {
				h.handleError(writeCtx, err, conn)
			}
			writeMu.Unlock()
		}(req)
	}

	// in-flight handlers get a grace period to finish their final
	// responses; stragglers are abandoned and the socket closes anyway
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(h.grace):
		h.log.Warn("abandoning in-flight requests after grace period")
	}
}

// handleRequest resolves the handler for the request and invokes it. An
// unknown target yields a NotFound error; the connection stays open.
func (h *ConnectionHandler) handleRequest(ctx context.Context, connCtx ConnectionContext, req *Request) (Response, error) {
	var handler MessageHandler
	switch req.Method {
	case MethodGet:
		handler = h.getHandlers[req.Target]
	case MethodPost:
		handler = h.postHandlers[req.Target]
	case MethodWebSocket:
		handler = h.wsHandler
	}
	if handler == nil {
		return Response{}, NewConnError(KindNotFound, fmt.Errorf("no handler for %s %q", req.Method, req.Target))
	}
	return handler(ctx, req, connCtx)
}

// handleError implements the connection-level error policy. It returns
// true when the connection should close.
func (h *ConnectionHandler) handleError(ctx context.Context, err error, conn Connection) bool {
	switch classify(err) {
	case KindBadRequest:
		h.writeError(ctx, conn, 400, "invalidRequest", err)
		return false
	case KindNotFound:
		h.writeError(ctx, conn, 404, "notFound", err)
		return false
	case KindProtocol:
		h.writeError(ctx, conn, 400, "badProtocol", err)
		return true
	case KindTransport:
		return true
	case KindCancelled:
		return true
	default: // KindInternal
		h.log.Error("internal error handling request", zap.Error(err))
		h.writeError(ctx, conn, 500, "internal", nil)
		return false
	}
}

func (h *ConnectionHandler) writeError(ctx context.Context, conn Connection, status int, code string, cause error) {
	payload := fmt.Sprintf(`{"status":"error","type":"response","error":%q}`, code)
	if cause != nil {
		h.log.Debug("request error", zap.String("error", code), zap.Error(cause))
	}
	if err := conn.Write(ctx, Response{Status: status, Payload: []byte(payload)}); err != nil {
		h.log.Debug("write error response", zap.Error(err))
	}
}
