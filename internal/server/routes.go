package server

import (
	"net/http"
)

type publicPather interface {
	PublicPath() string
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/admin/info", s.handleInfo)

	// Posts collection.
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)

	// Single post.
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /api/posts/{id}", s.handleUpdatePost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)

	// Admin.
	mux.HandleFunc("POST /api/admin/sweep", s.handleAdminSweep)

	// Local backend blobs.
	if pp, ok := s.blobs.(publicPather); ok {
		mux.HandleFunc("GET "+pp.PublicPath()+"/{key}", s.uploadHandler(pp.PublicPath()))
	}

	// SPA.
	if s.ui != nil {
		mux.Handle("GET "+uiPrefix, s.spaHandler(s.ui))
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, uiPrefix, http.StatusFound)
		})
	}

	return mux
}
