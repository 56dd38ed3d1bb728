package server

import (
	"net/http"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"promptbuilder/internal/gateway/handler/rpc"
	"promptbuilder/internal/gateway/middleware"
)

// Handlers groups everything the mux serves.
type Handlers struct {
	Prompt   *rpc.PromptHandler
	Taxonomy *rpc.TaxonomyHandler
	Settings *rpc.SettingsHandler
	Compose  *rpc.ComposeHandler
	Metrics  http.Handler
	Observer middleware.HTTPObserver
	Ready    func() error
	// Origins limits CORS; empty allows any origin.
	Origins  []string
}

func NewMux(h Handlers, log *zap.Logger, opts ...connect.HandlerOption) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	mux.Handle(rpc.NewPromptServiceHandler(h.Prompt, opts...))
	mux.Handle(rpc.NewTaxonomyServiceHandler(h.Taxonomy, opts...))
	mux.Handle(rpc.NewSettingsServiceHandler(h.Settings, opts...))

	// Live compose sessions
	if h.Compose != nil {
		mux.HandleFunc("/ws/compose", h.Compose.HandleComposeWS)
	}

	// Ops
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if h.Ready != nil {
			if err := h.Ready(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ready"))
	})

	// Middleware
	return middleware.CORS(middleware.Observe(mux, middleware.MuxRoute(mux), h.Observer, log), h.Origins...)
}
