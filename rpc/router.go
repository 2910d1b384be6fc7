package rpc

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/server"
)

// Handler is one JSON-RPC command: a validation spec plus the processing
// function.
type Handler interface {
	Spec(apiVersion uint32) Spec
	Process(ctx context.Context, params map[string]any, connCtx server.ConnectionContext) (map[string]any, *Status)
}

// Router dispatches WebSocket commands to registered handlers and frames
// their results into response envelopes.
type Router struct {
	log      *zap.Logger
	handlers map[string]Handler
}

func NewRouter(log *zap.Logger) *Router {
	return &Router{log: log, handlers: make(map[string]Handler)}
}

// Register binds a command name. Registration happens at bootstrap; the
// map is read-only afterwards.
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// WSHandler returns the message handler driving WebSocket requests
// through the router.
func (r *Router) WSHandler() server.MessageHandler {
	return func(ctx context.Context, req *server.Request, connCtx server.ConnectionContext) (server.Response, error) {
		var params map[string]any
		if err := json.Unmarshal(req.Payload, &params); err != nil {
			return errorResponse(nil, nil, &Status{Code: "badSyntax", Message: "Request is not valid JSON."})
		}

		id := params["id"]
		command, _ := params["command"].(string)
		handler, ok := r.handlers[command]
		if !ok {
			return errorResponse(id, params, UnknownCommand())
		}

		apiVersion := connCtx.APIVersion
		if v, ok := params["api_version"].(float64); ok && v >= 1 {
			apiVersion = uint32(v)
		}

		if status := handler.Spec(apiVersion).Validate(params); status != nil {
			return errorResponse(id, params, status)
		}

		result, status := handler.Process(ctx, params, connCtx)
		if status != nil {
			return errorResponse(id, params, status)
		}

		envelope := map[string]any{
			"result": result,
			"status": "success",
			"type":   "response",
		}
		if id != nil {
			envelope["id"] = id
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			r.log.Error("marshal response envelope", zap.Error(err))
			return errorResponse(id, params, InternalError())
		}
		return server.Response{Payload: payload}, nil
	}
}

// errorResponse frames a Status into the error envelope, echoing the
// request back the way rippled does.
func errorResponse(id any, request map[string]any, status *Status) (server.Response, error) {
	envelope := map[string]any{
		"error":         status.Code,
		"error_message": status.Message,
		"status":        "error",
		"type":          "response",
	}
	if id != nil {
		envelope["id"] = id
	}
	if request != nil {
		envelope["request"] = request
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return server.Response{}, server.NewConnError(server.KindInternal, err)
	}
	return server.Response{Status: 400, Payload: payload}, nil
}
