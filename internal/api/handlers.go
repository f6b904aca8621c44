package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
)

type statusResponse struct {
	Status string `json:"status"`
}

// handleGlobalStatus answers whole-network DNS blocking.
//
// GET /alldns/
func (s *Server) handleGlobalStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.GlobalStatus(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: st.String()})
}

// handleGlobalChange switches whole-network DNS blocking, with an optional
// upstream re-enable timer in seconds.
//
// POST /alldns/{direction}?timer=N
func (s *Server) handleGlobalChange(w http.ResponseWriter, r *http.Request) {
	enable, err := engine.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	var timer time.Duration
	if raw := r.URL.Query().Get("timer"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			WriteInvalidRequest(w, "timer must be a non-negative number of seconds")
			return
		}
		timer = time.Duration(seconds) * time.Second
	}

	st, err := s.engine.SetGlobal(r.Context(), enable, timer)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: st.String()})
}

// handleBlockStatus answers the status of one named block. Names nobody
// configured get the opaque sentinel, not an error, so probing automations
// see a stable answer.
//
// GET /pihole/status/{name}
func (s *Server) handleBlockStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: st.String()})
}

// handleBlockChange enables or disables one named block.
//
// POST /pihole/{direction}/{name}
func (s *Server) handleBlockChange(w http.ResponseWriter, r *http.Request) {
	enable, err := engine.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	if err := s.engine.Apply(r.Context(), chi.URLParam(r, "name"), enable); err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleRuleStatus answers a firewall rule's enabled flag as a bare boolean,
// the shape the existing automations parse.
//
// GET /ubiquiti/status_rule/{name}
func (s *Server) handleRuleStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := s.engine.LookupRule(name)
	if !ok {
		WriteNotFound(w, "rule "+name)
		return
	}

	st, err := s.engine.Get(r.Context(), def.Name)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"status": st == status.True})
}

// handleRuleChange flips a firewall rule.
//
// POST /ubiquiti/change_rule/{direction}/{name}
func (s *Server) handleRuleChange(w http.ResponseWriter, r *http.Request) {
	enable, err := engine.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	name := chi.URLParam(r, "name")
	def, ok := s.engine.LookupRule(name)
	if !ok {
		WriteNotFound(w, "rule "+name)
		return
	}

	if err := s.engine.Apply(r.Context(), def.Name, enable); err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: status.FromBool(enable).String()})
}

// handleDeviceChange takes a device group offline or back online.
//
// POST /ubiquiti/change_device/{state}/{name}
func (s *Server) handleDeviceChange(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	block, err := engine.ParseDeviceState(state)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	name := chi.URLParam(r, "name")
	def, ok := s.engine.Lookup(name)
	if !ok || def.Category != engine.CategoryDeviceGroup {
		WriteNotFound(w, "device group "+name)
		return
	}

	if err := s.engine.Apply(r.Context(), name, block); err != nil {
		writeUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: strings.ToLower(state)})
}
