package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"imgpost/internal/api"
)

const adminPathPrefix = "/api/admin/"

// withAdminToken guards /api/admin/* with the X-Admin-Token header when an
// admin token is configured.
func (s *Server) withAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || !strings.HasPrefix(r.URL.Path, adminPathPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		provided := strings.TrimSpace(r.Header.Get(api.AdminTokenHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminToken)) != 1 {
			s.writeErrorReq(w, r, http.StatusForbidden, forbiddenCode(fmt.Errorf("admin token required"), ErrCodeAdminForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	apply, err := queryBool(r, "apply")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	grace, err := queryDuration(r, "grace")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.service.SweepOrphans(r.Context(), apply, grace)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.SweepResponse{
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
		Candidates:     result.Candidates,
	})
}
