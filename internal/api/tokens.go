package api

import "net/http"

// handleVerifyToken answers resource servers asking whether a token is good.
// The verdict travels as a 200 body in all but two cases: no bearer token at
// all, and a store fault.
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	result, aerr := s.auth.Basic(r)
	if aerr != nil {
		s.metrics.recordVerification("basic", aerr.detail)
		writeError(w, aerr)
		return
	}

	if result.Valid {
		s.metrics.recordVerification("basic", "ok")
	} else {
		s.metrics.recordVerification("basic", *result.Reason)
	}

	writeJSON(w, http.StatusOK, result)
}
