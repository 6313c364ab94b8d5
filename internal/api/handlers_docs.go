package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docqa/internal/index"
)

// handleListDocuments lists all indexed documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	collections, err := s.docs.ListCollections(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	docs := make([]map[string]any, 0, len(collections))
	for _, col := range collections {
		name, ok := index.DocumentName(col)
		if !ok {
			continue
		}
		docs = append(docs, map[string]any{
			"name":       name,
			"collection": col,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleDeleteDocument drops a document's collection. Accepts either
// the document name or the full collection name.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		jsonError(w, "document name is required", http.StatusBadRequest)
		return
	}
	collection := name
	if !strings.HasPrefix(collection, index.CollectionPrefix) {
		collection = index.CollectionName(name)
	}

	if err := s.docs.DeleteCollection(r.Context(), collection); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"collection": collection,
		"deleted":    true,
	})
}

// handleRelatedPages returns the pages most similar to one page of a
// document. The page in the URL is 1-indexed, matching query results.
func (s *Server) handleRelatedPages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	collection := name
	if !strings.HasPrefix(collection, index.CollectionPrefix) {
		collection = index.CollectionName(name)
	}

	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		jsonError(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}

	topK := 2
	if v := r.URL.Query().Get("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	related, err := s.engine.RelatedPages(r.Context(), collection, page-1, topK)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"collection": collection,
		"page":       page,
		"related":    related,
	})
}
