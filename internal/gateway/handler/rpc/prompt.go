package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/prompt"
	"promptbuilder/internal/refine"
)

const (
	PromptServiceName = "promptbuilder.v1.PromptService"

	PromptServiceListCategoriesProcedure = "/" + PromptServiceName + "/ListCategories"
	PromptServiceComposeProcedure        = "/" + PromptServiceName + "/Compose"
	PromptServiceRefineProcedure         = "/" + PromptServiceName + "/Refine"
	PromptServiceAnalyzeProcedure        = "/" + PromptServiceName + "/Analyze"
)

// PromptService is what the handler needs from service/prompt.
type PromptService interface {
	Catalog() *catalog.Catalog
	AIEnabled() bool
	Compose(ctx context.Context, choices map[string][]string, opts prompt.Options) (prompt.Result, error)
	Refine(ctx context.Context, text string) (refine.Result, error)
	Analyze(ctx context.Context, image []byte, mimeType string) (refine.AnalysisResult, error)
}

type PromptHandler struct {
	svc PromptService
}

func NewPromptHandler(svc PromptService) *PromptHandler {
	return &PromptHandler{svc: svc}
}

func (h *PromptHandler) ListCategories(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[ListCategoriesResponse], error) {
	cat := h.svc.Catalog()
	return connect.NewResponse(&ListCategoriesResponse{
		Categories: cat.Categories(),
		Groups:     cat.Groups(),
		AIEnabled:  h.svc.AIEnabled(),
	}), nil
}

func (h *PromptHandler) Compose(ctx context.Context, req *connect.Request[ComposeRequest]) (*connect.Response[ComposeResponse], error) {
	opts := prompt.DefaultOptions()
	if req.Msg.Options != nil {
		opts = *req.Msg.Options
	}
	res, err := h.svc.Compose(ctx, req.Msg.Selections, opts)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&res), nil
}

func (h *PromptHandler) Refine(ctx context.Context, req *connect.Request[RefineRequest]) (*connect.Response[RefineResponse], error) {
	res, err := h.svc.Refine(ctx, req.Msg.Prompt)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&res), nil
}

func (h *PromptHandler) Analyze(ctx context.Context, req *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error) {
	res, err := h.svc.Analyze(ctx, req.Msg.Image, req.Msg.MimeType)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toAnalyzeResponse(res, h.svc.Catalog().Position)), nil
}

// NewPromptServiceHandler mounts every PromptService procedure under one
// path prefix.
func NewPromptServiceHandler(h *PromptHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(PromptServiceListCategoriesProcedure, connect.NewUnaryHandler(PromptServiceListCategoriesProcedure, h.ListCategories, opts...))
	mux.Handle(PromptServiceComposeProcedure, connect.NewUnaryHandler(PromptServiceComposeProcedure, h.Compose, opts...))
	mux.Handle(PromptServiceRefineProcedure, connect.NewUnaryHandler(PromptServiceRefineProcedure, h.Refine, opts...))
	mux.Handle(PromptServiceAnalyzeProcedure, connect.NewUnaryHandler(PromptServiceAnalyzeProcedure, h.Analyze, opts...))
	return "/" + PromptServiceName + "/", mux
}
