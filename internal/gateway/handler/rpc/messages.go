package rpc

import (
	"promptbuilder/internal/catalog"
	"promptbuilder/internal/gateway/repository/snapshot"
	"promptbuilder/internal/gateway/settings"
	"promptbuilder/internal/prompt"
	"promptbuilder/internal/refine"
	"promptbuilder/internal/taxonomy"
)

type Empty struct{}

type ListCategoriesResponse struct {
	Categories []catalog.Category `json:"categories"`
	Groups     []catalog.Group    `json:"groups"`
	AIEnabled  bool               `json:"ai_enabled"`
}

type ComposeRequest struct {
	// Selections maps a category id to chosen item ids; ["__remove__"]
	// removes a removable category.
	Selections map[string][]string `json:"selections"`
	Options    *prompt.Options     `json:"options,omitempty"`
}

type ComposeResponse = prompt.Result

type RefineRequest struct {
	Prompt string `json:"prompt"`
}

type RefineResponse = refine.Result

type AnalyzeRequest struct {
	Image    []byte `json:"image"`
	MimeType string `json:"mime_type"`
}

type AnalyzeResponse struct {
	Drafts    []taxonomy.Item `json:"drafts"`
	ModelUsed string          `json:"model_used"`
	Advisory  string          `json:"advisory,omitempty"`
	RequestID string          `json:"request_id"`
}

type StatusView struct {
	State     taxonomy.PersistState `json:"state"`
	Items     int                   `json:"items"`
	LastError string                `json:"last_error,omitempty"`
	SavedAt   string                `json:"saved_at,omitempty"`
}

type TaxonomyResponse struct {
	Categories map[string][]taxonomy.Item `json:"categories"`
	Status     StatusView                 `json:"status"`
}

type ItemRequest struct {
	Item taxonomy.Item `json:"item"`
}

type ItemRef struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

type ItemResponse struct {
	Item   taxonomy.Item `json:"item"`
	Status StatusView    `json:"status"`
}

type ReorderRequest struct {
	Category  string `json:"category"`
	Index     int    `json:"index"`
	Direction string `json:"direction"`
}

type ReorderResponse struct {
	Moved  bool       `json:"moved"`
	Status StatusView `json:"status"`
}

type SaveResponse struct {
	RequestID string     `json:"request_id"`
	Items     int        `json:"items"`
	Snapshot  string     `json:"snapshot,omitempty"`
	Status    StatusView `json:"status"`
}

type ListSnapshotsResponse struct {
	Snapshots []snapshot.Info `json:"snapshots"`
}

type RestoreSnapshotRequest struct {
	Name string `json:"name"`
}

type UpdateSettingsRequest struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
}

type SettingsResponse = settings.View
