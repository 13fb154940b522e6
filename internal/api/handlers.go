package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pricecompare/internal/aggregate"
	"pricecompare/internal/registry"
)

const maxRequestBytes = 64 << 10

// AggregateRequest is the POST /api/aggregate body.
type AggregateRequest struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources,omitempty"`
}

// SourceInfo is one entry of GET /api/sources.
type SourceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Logo      string `json:"logo"`
	Transport string `json:"transport"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.aggregate(w, r, req)
}

// handleAggregateQuery accepts ?q=...&sources=a,b for quick manual checks.
func (s *Server) handleAggregateQuery(w http.ResponseWriter, r *http.Request) {
	req := AggregateRequest{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("sources"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.Sources = append(req.Sources, id)
			}
		}
	}
	s.aggregate(w, r, req)
}

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request, req AggregateRequest) {
	res, err := s.agg.Aggregate(r.Context(), req.Query, req.Sources)
	if errors.Is(err, aggregate.ErrEmptyQuery) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	list := s.agg.Registry().List()
	out := make([]SourceInfo, 0, len(list))
	for _, src := range list {
		logo := src.Logo
		if logo == "" {
			logo = aggregate.DefaultLogo(src.ID)
		}
		transport := src.Transport
		if transport == "" {
			transport = registry.TransportHTTP
		}
		out = append(out, SourceInfo{ID: src.ID, Name: src.Name, Logo: logo, Transport: transport})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": len(s.agg.Registry().IDs()),
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
