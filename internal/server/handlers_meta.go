package server

import (
	"net/http"

	"imgpost/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := api.InfoResponse{
		StorageBackend: s.service.StorageBackend(),
		CacheBackend:   s.service.CacheBackend(),
		TagCounts:      map[string]int{},
	}

	if src, ok := s.store.(infoSource); ok {
		info, err := src.StoreInfo(r.Context())
		if err != nil {
			s.writeServiceError(w, r, storeFailure(err))
			return
		}
		resp.SchemaVersion = info.SchemaVersion
		resp.TotalPosts = info.TotalPosts
		resp.TotalImages = info.TotalImages
		if info.TagCounts != nil {
			resp.TagCounts = info.TagCounts
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
