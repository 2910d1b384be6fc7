package server

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the service is fronted by its own proxy layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP adapts plain HTTP requests onto the handler tables and
// upgrades WebSocket requests into full connections. HTTP requests are
// inherently sequential per exchange; WebSocket connections run under the
// handler's configured policy.
func (h *ConnectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) && h.wsHandler != nil {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		conn := NewWebSocketConnection(ws, 1)
		h.ProcessConnection(r.Context(), conn)
		return
	}

	var handler MessageHandler
	var method Method
	switch r.Method {
	case http.MethodGet:
		method = MethodGet
		handler = h.getHandlers[r.URL.Path]
	case http.MethodPost:
		method = MethodPost
		handler = h.postHandlers[r.URL.Path]
	default:
		http.Error(w, `{"status":"error","type":"response","error":"notFound"}`, http.StatusMethodNotAllowed)
		return
	}
	if handler == nil {
		http.Error(w, `{"status":"error","type":"response","error":"notFound"}`, http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"status":"error","type":"response","error":"badProtocol"}`, http.StatusBadRequest)
		return
	}

	resp, err := handler(r.Context(), &Request{Method: method, Target: r.URL.Path, Payload: payload}, ConnectionContext{APIVersion: 1})
	if err != nil {
		switch classify(err) {
		case KindBadRequest:
			http.Error(w, `{"status":"error","type":"response","error":"invalidRequest"}`, http.StatusBadRequest)
		case KindNotFound:
			http.Error(w, `{"status":"error","type":"response","error":"notFound"}`, http.StatusNotFound)
		default:
			h.log.Error("internal error handling http request", zap.Error(err))
			http.Error(w, `{"status":"error","type":"response","error":"internal"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Payload)
}
