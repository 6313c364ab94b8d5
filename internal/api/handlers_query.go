package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/retrieval"
)

type queryRequest struct {
	Query string `json:"query"`

	// Documents restricts the search; empty means every indexed
	// document. Entries may be document names or collection names.
	Documents []string `json:"documents"`

	// Markdown adds a rendered markdown view of the results.
	Markdown bool `json:"markdown"`
}

// handleQuery runs a retrieval query across the selected documents.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	collections := make([]string, 0, len(req.Documents))
	for _, doc := range req.Documents {
		if strings.HasPrefix(doc, index.CollectionPrefix) {
			collections = append(collections, doc)
		} else {
			collections = append(collections, index.CollectionName(doc))
		}
	}
	if len(collections) == 0 {
		all, err := s.docs.ListCollections(ctx)
		if err != nil {
			jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
			return
		}
		collections = all
	}
	if len(collections) == 0 {
		jsonError(w, "no documents indexed", http.StatusNotFound)
		return
	}

	results, skipped, err := s.engine.Search(ctx, req.Query, collections)
	if err != nil {
		jsonError(w, "query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	acc := retrieval.NewAccessor(results)
	resp := map[string]any{
		"results": results,
		"count":   len(results),
	}
	if acc.IsEmpty() {
		resp["count"] = 0
	}
	if len(skipped) > 0 {
		resp["skipped"] = skipped
	}
	if req.Markdown {
		resp["markdown"] = acc.ToMarkdown()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
