package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ai-buddy-chat/internal/domain"
	"ai-buddy-chat/internal/domain/ports/adapter"
)

type healthResponse struct {
	Status         string  `json:"status"`
	Timestamp      string  `json:"timestamp"`
	ConnectedUsers int     `json:"connectedUsers"`
	Uptime         float64 `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConnectedUsers: s.relay.ConnectedCount(),
		Uptime:         time.Since(s.started).Seconds(),
	})
}

type userEntry struct {
	Username string `json:"username"`
	JoinTime string `json:"joinTime"`
}

type usersResponse struct {
	Users []userEntry `json:"users"`
	Count int         `json:"count"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	participants := s.relay.Participants()
	users := make([]userEntry, 0, len(participants))
	for _, p := range participants {
		users = append(users, userEntry{
			Username: p.Username,
			JoinTime: p.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users, Count: len(users)})
}

type buddyRequest struct {
	Message string            `json:"message"`
	History []adapter.Message `json:"history"`
}

type buddyResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply"`
}

// handleBuddy performs a one-shot generation without touching the
// session registry; the caller supplies its own history.
func (s *Server) handleBuddy(w http.ResponseWriter, r *http.Request) {
	var req buddyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := s.responder.OneShot(r.Context(), req.History, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		s.log.Warn().Err(err).Msg("one-shot generation failed")
		writeJSON(w, http.StatusBadGateway, buddyResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, buddyResponse{Success: true, Reply: reply})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
