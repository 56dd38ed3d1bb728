package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"promptbuilder/internal/gateway/repository/snapshot"
	taxonomysvc "promptbuilder/internal/gateway/service/taxonomy"
	"promptbuilder/internal/taxonomy"
)

const (
	TaxonomyServiceName = "promptbuilder.v1.TaxonomyService"

	TaxonomyServiceLoadProcedure            = "/" + TaxonomyServiceName + "/Load"
	TaxonomyServiceGetProcedure             = "/" + TaxonomyServiceName + "/Get"
	TaxonomyServiceUpsertProcedure          = "/" + TaxonomyServiceName + "/Upsert"
	TaxonomyServiceDeleteProcedure          = "/" + TaxonomyServiceName + "/Delete"
	TaxonomyServiceReorderProcedure         = "/" + TaxonomyServiceName + "/Reorder"
	TaxonomyServiceDuplicateProcedure       = "/" + TaxonomyServiceName + "/Duplicate"
	TaxonomyServiceSaveProcedure            = "/" + TaxonomyServiceName + "/Save"
	TaxonomyServiceStatusProcedure          = "/" + TaxonomyServiceName + "/Status"
	TaxonomyServiceListSnapshotsProcedure   = "/" + TaxonomyServiceName + "/ListSnapshots"
	TaxonomyServiceRestoreSnapshotProcedure = "/" + TaxonomyServiceName + "/RestoreSnapshot"
)

type TaxonomyService interface {
	Load(ctx context.Context) (taxonomy.Data, error)
	Get(ctx context.Context) (taxonomy.Data, error)
	Upsert(ctx context.Context, it taxonomy.Item) (taxonomy.Item, error)
	Delete(ctx context.Context, category, id string) error
	Reorder(ctx context.Context, category string, index int, dir taxonomy.Direction) (bool, error)
	Duplicate(ctx context.Context, category, id string) (taxonomy.Item, error)
	Save(ctx context.Context) (taxonomysvc.SaveResult, error)
	Status() taxonomy.Status
	Snapshots(ctx context.Context) ([]snapshot.Info, error)
	Restore(ctx context.Context, name string) (taxonomy.Data, error)
}

type TaxonomyHandler struct {
	svc TaxonomyService
}

func NewTaxonomyHandler(svc TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{svc: svc}
}

func (h *TaxonomyHandler) data(d taxonomy.Data, err error) (*connect.Response[TaxonomyResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toTaxonomyResponse(d, h.svc.Status())), nil
}

func (h *TaxonomyHandler) Load(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[TaxonomyResponse], error) {
	return h.data(h.svc.Load(ctx))
}

func (h *TaxonomyHandler) Get(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[TaxonomyResponse], error) {
	return h.data(h.svc.Get(ctx))
}

func (h *TaxonomyHandler) Upsert(ctx context.Context, req *connect.Request[ItemRequest]) (*connect.Response[ItemResponse], error) {
	it, err := h.svc.Upsert(ctx, req.Msg.Item)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: it, Status: toStatusView(h.svc.Status())}), nil
}

func (h *TaxonomyHandler) Delete(ctx context.Context, req *connect.Request[ItemRef]) (*connect.Response[StatusView], error) {
	if err := h.svc.Delete(ctx, req.Msg.Category, req.Msg.ID); err != nil {
		return nil, toConnectError(err)
	}
	st := toStatusView(h.svc.Status())
	return connect.NewResponse(&st), nil
}

func (h *TaxonomyHandler) Reorder(ctx context.Context, req *connect.Request[ReorderRequest]) (*connect.Response[ReorderResponse], error) {
	dir, err := taxonomy.ParseDirection(req.Msg.Direction)
	if err != nil {
		return nil, toConnectError(err)
	}
	moved, err := h.svc.Reorder(ctx, req.Msg.Category, req.Msg.Index, dir)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ReorderResponse{Moved: moved, Status: toStatusView(h.svc.Status())}), nil
}

func (h *TaxonomyHandler) Duplicate(ctx context.Context, req *connect.Request[ItemRef]) (*connect.Response[ItemResponse], error) {
	draft, err := h.svc.Duplicate(ctx, req.Msg.Category, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: draft, Status: toStatusView(h.svc.Status())}), nil
}

func (h *TaxonomyHandler) Save(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[SaveResponse], error) {
	res, err := h.svc.Save(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SaveResponse{
		RequestID: res.RequestID,
		Items:     res.Items,
		Snapshot:  res.Snapshot,
		Status:    toStatusView(h.svc.Status()),
	}), nil
}

func (h *TaxonomyHandler) Status(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[StatusView], error) {
	st := toStatusView(h.svc.Status())
	return connect.NewResponse(&st), nil
}

func (h *TaxonomyHandler) ListSnapshots(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListSnapshotsResponse], error) {
	infos, err := h.svc.Snapshots(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	return connect.NewResponse(&ListSnapshotsResponse{Snapshots: infos}), nil
}

func (h *TaxonomyHandler) RestoreSnapshot(ctx context.Context, req *connect.Request[RestoreSnapshotRequest]) (*connect.Response[TaxonomyResponse], error) {
	return h.data(h.svc.Restore(ctx, req.Msg.Name))
}

func NewTaxonomyServiceHandler(h *TaxonomyHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(TaxonomyServiceLoadProcedure, connect.NewUnaryHandler(TaxonomyServiceLoadProcedure, h.Load, opts...))
	mux.Handle(TaxonomyServiceGetProcedure, connect.NewUnaryHandler(TaxonomyServiceGetProcedure, h.Get, opts...))
	mux.Handle(TaxonomyServiceUpsertProcedure, connect.NewUnaryHandler(TaxonomyServiceUpsertProcedure, h.Upsert, opts...))
	mux.Handle(TaxonomyServiceDeleteProcedure, connect.NewUnaryHandler(TaxonomyServiceDeleteProcedure, h.Delete, opts...))
	mux.Handle(TaxonomyServiceReorderProcedure, connect.NewUnaryHandler(TaxonomyServiceReorderProcedure, h.Reorder, opts...))
	mux.Handle(TaxonomyServiceDuplicateProcedure, connect.NewUnaryHandler(TaxonomyServiceDuplicateProcedure, h.Duplicate, opts...))
	mux.Handle(TaxonomyServiceSaveProcedure, connect.NewUnaryHandler(TaxonomyServiceSaveProcedure, h.Save, opts...))
	mux.Handle(TaxonomyServiceStatusProcedure, connect.NewUnaryHandler(TaxonomyServiceStatusProcedure, h.Status, opts...))
	mux.Handle(TaxonomyServiceListSnapshotsProcedure, connect.NewUnaryHandler(TaxonomyServiceListSnapshotsProcedure, h.ListSnapshots, opts...))
	mux.Handle(TaxonomyServiceRestoreSnapshotProcedure, connect.NewUnaryHandler(TaxonomyServiceRestoreSnapshotProcedure, h.RestoreSnapshot, opts...))
	return "/" + TaxonomyServiceName + "/", mux
}
