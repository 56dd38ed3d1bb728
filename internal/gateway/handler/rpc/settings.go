package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"promptbuilder/internal/gateway/settings"
)

const (
	SettingsServiceName = "promptbuilder.v1.SettingsService"

	SettingsServiceGetProcedure    = "/" + SettingsServiceName + "/Get"
	SettingsServiceUpdateProcedure = "/" + SettingsServiceName + "/Update"
	SettingsServiceClearProcedure  = "/" + SettingsServiceName + "/Clear"
)

type SettingsService interface {
	View() settings.View
	Update(e settings.Endpoint) error
	Clear() error
}

type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) view() *connect.Response[SettingsResponse] {
	v := h.svc.View()
	return connect.NewResponse(&v)
}

func (h *SettingsHandler) Get(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[SettingsResponse], error) {
	return h.view(), nil
}

func (h *SettingsHandler) Update(_ context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[SettingsResponse], error) {
	if err := h.svc.Update(settings.Endpoint{URL: req.Msg.APIURL, APIKey: req.Msg.APIKey}); err != nil {
		return nil, toConnectError(err)
	}
	return h.view(), nil
}

func (h *SettingsHandler) Clear(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[SettingsResponse], error) {
	if err := h.svc.Clear(); err != nil {
		return nil, toConnectError(err)
	}
	return h.view(), nil
}

func NewSettingsServiceHandler(h *SettingsHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(SettingsServiceGetProcedure, connect.NewUnaryHandler(SettingsServiceGetProcedure, h.Get, opts...))
	mux.Handle(SettingsServiceUpdateProcedure, connect.NewUnaryHandler(SettingsServiceUpdateProcedure, h.Update, opts...))
	mux.Handle(SettingsServiceClearProcedure, connect.NewUnaryHandler(SettingsServiceClearProcedure, h.Clear, opts...))
	return "/" + SettingsServiceName + "/", mux
}
