package rpc

import (
	"sort"
	"time"

	"promptbuilder/internal/refine"
	"promptbuilder/internal/taxonomy"
)

func toStatusView(st taxonomy.Status) StatusView {
	v := StatusView{State: st.State, Items: st.Items, LastError: st.LastError}
	if !st.SavedAt.IsZero() {
		v.SavedAt = st.SavedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func toTaxonomyResponse(d taxonomy.Data, st taxonomy.Status) *TaxonomyResponse {
	out := &TaxonomyResponse{Categories: map[string][]taxonomy.Item{}, Status: toStatusView(st)}
	for cat, items := range d {
		out.Categories[cat] = items
	}
	return out
}

// toAnalyzeResponse orders drafts by category position.
func toAnalyzeResponse(res refine.AnalysisResult, position func(string) int) *AnalyzeResponse {
	out := &AnalyzeResponse{
		Drafts:    make([]taxonomy.Item, 0, len(res.Items)),
		ModelUsed: res.ModelUsed,
		Advisory:  res.Advisory,
		RequestID: res.RequestID,
	}
	for cat, it := range res.Items {
		out.Drafts = append(out.Drafts, it.Draft(cat))
	}
	sort.SliceStable(out.Drafts, func(i, j int) bool {
		return position(out.Drafts[i].Category) < position(out.Drafts[j].Category)
	})
	return out
}
