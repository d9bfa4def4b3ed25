package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"scorebot/internal/feed"
	"scorebot/internal/store"
	"scorebot/pkg/logx"
)

// handleTrack creates a subscription. When gameId is omitted the team name is
// resolved against today's scoreboard. The baseline is seeded from the feed
// best-effort: a fetch failure leaves it null and the engine establishes it on
// the first poll instead.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scope == "" || req.UserID == "" || req.TeamName == "" {
		writeError(w, http.StatusBadRequest, "scope, userId and teamName are required")
		return
	}
	sport, err := feed.ParseSport(req.Sport)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		snap  feed.Snapshot
		known bool
	)
	if req.GameID == "" {
		snap, known, err = s.feed.FindTeamGame(r.Context(), req.TeamName, sport)
		if err != nil {
			writeError(w, http.StatusBadGateway, "scoreboard unavailable")
			return
		}
		if !known {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no game found for %q", req.TeamName))
			return
		}
		req.GameID = snap.GameID
	} else {
		// Best-effort baseline seed; a failed fetch is not a track failure.
		if snaps, ferr := s.feed.Scoreboard(r.Context(), sport); ferr == nil {
			for _, sn := range snaps {
				if sn.GameID == req.GameID {
					snap, known = sn, true
					break
				}
			}
		} else {
			s.log.Warn("baseline seed fetch failed", logx.String("game", req.GameID), logx.Err(ferr))
		}
	}

	sub := store.Subscription{
		Scope:    req.Scope,
		UserID:   req.UserID,
		GameID:   req.GameID,
		TeamName: req.TeamName,
		Sport:    string(sport),
	}
	if known {
		sub.Baseline = &store.Baseline{Home: snap.Home.Score, Away: snap.Away.Score, Period: snap.Period}
	}

	created, isNew, err := s.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if isNew && known {
		if nerr := s.notices.PostNotice(r.Context(), req.Scope, req.UserID, "Now tracking: "+snap.FormatStatus()); nerr != nil {
			s.log.Warn("track notice failed", logx.Err(nerr))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscription":    viewOf(created),
		"alreadyTracking": !isNew,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}
	subs, err := s.store.ListActive(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, viewOf(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": views})
}

// handleUntrack deactivates by game id, or by case-insensitive team-name
// pattern when no game id is given.
func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	var req untrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scope == "" || (req.GameID == "" && req.TeamName == "") {
		writeError(w, http.StatusBadRequest, "scope and one of gameId or teamName are required")
		return
	}

	var (
		removed int64
		err     error
	)
	if req.GameID != "" {
		removed, err = s.store.DeactivateByGame(r.Context(), req.Scope, req.GameID)
	} else {
		removed, err = s.store.DeactivateMatching(r.Context(), req.Scope, req.TeamName)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleBaselinePatch is the maintenance surface: overwrite the baseline of
// every active subscription for one game.
func (s *Server) handleBaselinePatch(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}
	updated, err := s.store.UpdateBaselineByGame(r.Context(), req.GameID,
		store.Baseline{Home: req.HomeScore, Away: req.AwayScore, Period: req.Period})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// handlePoll runs one reconciliation cycle. This is the external-scheduler
// entry point; overlapping calls are safe.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "poll failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	userID := r.URL.Query().Get("userId")
	if scope == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "scope and userId are required")
		return
	}
	pref, ok, err := s.store.GetPreference(r.Context(), scope, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		// Unset means enabled: users receive score pushes until they opt out.
		pref = store.Preference{Scope: scope, UserID: userID, NotificationsEnabled: true}
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": map[string]any{
		"scope":                scope,
		"userId":               userID,
		"notificationsEnabled": pref.NotificationsEnabled,
		"telegramChatId":       pref.TelegramChatID,
	}})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scope == "" || req.UserID == "" || req.NotificationsEnabled == nil {
		writeError(w, http.StatusBadRequest, "scope, userId and notificationsEnabled are required")
		return
	}
	err := s.store.SetPreference(r.Context(), store.Preference{
		Scope:                req.Scope,
		UserID:               req.UserID,
		NotificationsEnabled: *req.NotificationsEnabled,
		TelegramChatID:       req.TelegramChatID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := s.store.ListMessages(r.Context(), scope, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageViewOf(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}
