// Package api exposes HTTP handlers for the trackbook service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/trackbook/internal/auth"
	"example.com/trackbook/internal/domain"
	"example.com/trackbook/internal/persistence"
	"example.com/trackbook/internal/track"
	"example.com/trackbook/internal/units"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/activities/import", h.importActivity)
	mux.HandleFunc("/v1/activities/summary", h.summary)
	mux.HandleFunc("/v1/activities/progression", h.progression)
	mux.HandleFunc("/v1/tracks/stats", h.trackStats)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPut:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func requireClaims(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	aggregate, replay, err := h.service.RecordActivity(r.Context(), domain.RecordActivityInput{
		Username:       claims.Subject,
		Name:           req.Name,
		Sport:          req.Sport,
		Flags:          req.Flags,
		EffortLevel:    req.EffortLevel,
		Description:    req.Description,
		StartTime:      req.StartTime,
		Duration:       time.Duration(req.DurationSec) * time.Second,
		DistanceMetres: req.DistanceMetres,
		ClimbMetres:    req.ClimbMetres,
		Source:         req.Source,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, RecordActivityResponse{
		ActivityID: aggregate.ID,
		Status:     string(aggregate.State),
		Replay:     replay,
	})
}

func (h *Handler) importActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ImportActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	points := make([]track.Point, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, track.Point{
			Lat:       p.Lat,
			Lon:       p.Lon,
			EleMetres: p.EleMetres,
			Time:      p.Time,
		})
	}

	aggregate, replay, err := h.service.ImportActivity(r.Context(), domain.ImportActivityInput{
		Username:       claims.Subject,
		Name:           req.Name,
		RawSport:       req.Sport,
		Points:         points,
		Source:         req.Source,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, RecordActivityResponse{
		ActivityID: aggregate.ID,
		Status:     string(aggregate.State),
		Replay:     replay,
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	aggregate, err := h.service.GetActivity(r.Context(), claims.Subject, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*aggregate))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	aggregates, next, err := h.service.ListActivities(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(aggregates))
	for _, agg := range aggregates {
		items = append(items, toActivityView(agg))
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	aggregate, err := h.service.UpdateActivity(r.Context(), claims.Subject, id, domain.UpdateActivityInput{
		Name:        req.Name,
		Sport:       req.Sport,
		Flags:       req.Flags,
		EffortLevel: req.EffortLevel,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*aggregate))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteActivity(r.Context(), claims.Subject, id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	sports := splitSports(r.URL.Query().Get("sports"))
	period := domain.Period(r.URL.Query().Get("period"))

	system, err := units.SystemByName(r.URL.Query().Get("units"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	totals, err := h.service.Summary(r.Context(), claims.Subject, sports, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := SummaryResponse{
		Activities:     totals.Activities,
		DistanceMetres: totals.DistanceMetres,
		DurationSec:    int64(totals.Duration / time.Second),
		ClimbMetres:    totals.ClimbMetres,
		Pending:        totals.Pending,
		Synced:         totals.Synced,
		Failed:         totals.Failed,
		LastActivityAt: totals.LastActivityAt,
		Distance:       system.FormatDistance(totals.DistanceMetres),
		Duration:       units.FormatDuration(totals.Duration),
		Climb:          system.FormatAltitude(totals.ClimbMetres),
	}
	if totals.Duration > 0 {
		speed := totals.DistanceMetres / totals.Duration.Seconds()
		resp.AverageSpeed = system.FormatSpeed(speed)
		resp.AveragePace = system.FormatPace(speed)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) progression(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireClaims(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	sports := splitSports(r.URL.Query().Get("sports"))
	period := domain.Period(r.URL.Query().Get("period"))

	system, err := units.SystemByName(r.URL.Query().Get("units"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	points, err := h.service.Progression(r.Context(), claims.Subject, sports, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := ProgressionResponse{Points: make([]ProgressionView, 0, len(points))}
	for _, p := range points {
		resp.Points = append(resp.Points, ProgressionView{
			StartTime:           p.StartTime,
			TotalDistanceMetres: p.TotalDistanceMetres,
			TotalDistance:       system.FormatDistance(p.TotalDistanceMetres),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func splitSports(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RecordActivityRequest is the payload for POST /v1/activities.
type RecordActivityRequest struct {
	Name           string          `json:"name"`
	Sport          string          `json:"sport"`
	Flags          map[string]bool `json:"flags,omitempty"`
	EffortLevel    *int            `json:"effort_level,omitempty"`
	Description    string          `json:"description,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	DurationSec    int64           `json:"duration_sec"`
	DistanceMetres *float64        `json:"distance_m,omitempty"`
	ClimbMetres    *float64        `json:"climb_m,omitempty"`
	Source         string          `json:"source"`
}

// RecordActivityResponse describes the response body for record and import.
type RecordActivityResponse struct {
	ActivityID string `json:"activity_id"`
	Status     string `json:"status"`
	Replay     bool   `json:"idempotent_replay"`
}

// TrackPointRequest is one decoded GPS sample in an import payload.
type TrackPointRequest struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	EleMetres *float64  `json:"ele_m,omitempty"`
	Time      time.Time `json:"time"`
}

// ImportActivityRequest is the payload for POST /v1/activities/import.
type ImportActivityRequest struct {
	Name   string              `json:"name,omitempty"`
	Sport  string              `json:"sport,omitempty"`
	Source string              `json:"source"`
	Points []TrackPointRequest `json:"points"`
}

// UpdateActivityRequest is the payload for PUT /v1/activities/{id}.
type UpdateActivityRequest struct {
	Name        string          `json:"name"`
	Sport       string          `json:"sport"`
	Flags       map[string]bool `json:"flags,omitempty"`
	EffortLevel *int            `json:"effort_level,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID     string          `json:"activity_id"`
	Username       string          `json:"username"`
	Name           string          `json:"name"`
	Sport          string          `json:"sport"`
	Flags          map[string]bool `json:"flags"`
	EffortLevel    *int            `json:"effort_level,omitempty"`
	Description    string          `json:"description,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	DurationSec    int64           `json:"duration_sec"`
	DistanceMetres *float64        `json:"distance_m,omitempty"`
	ClimbMetres    *float64        `json:"climb_m,omitempty"`
	Source         string          `json:"source"`
	Version        string          `json:"version"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	QuarantinedAt  *time.Time      `json:"quarantined_at,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SummaryResponse carries totals in SI plus display strings in the requested
// unit system.
type SummaryResponse struct {
	Activities     int        `json:"activities"`
	DistanceMetres float64    `json:"distance_m"`
	DurationSec    int64      `json:"duration_sec"`
	ClimbMetres    float64    `json:"climb_m"`
	Pending        int        `json:"pending"`
	Synced         int        `json:"synced"`
	Failed         int        `json:"failed"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	Distance       string     `json:"distance"`
	Duration       string     `json:"duration"`
	Climb          string     `json:"climb"`
	AverageSpeed   string     `json:"average_speed,omitempty"`
	AveragePace    string     `json:"average_pace,omitempty"`
}

// ProgressionView is one step of the cumulative distance series.
type ProgressionView struct {
	StartTime           time.Time `json:"start_time"`
	TotalDistanceMetres float64   `json:"total_distance_m"`
	TotalDistance       string    `json:"total_distance"`
}

// ProgressionResponse packages the progression series.
type ProgressionResponse struct {
	Points []ProgressionView `json:"points"`
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(agg domain.ActivityAggregate) ActivityView {
	return ActivityView{
		ActivityID:     agg.ID,
		Username:       agg.Username,
		Name:           agg.Name,
		Sport:          agg.Sport,
		Flags:          agg.Flags,
		EffortLevel:    agg.EffortLevel,
		Description:    agg.Description,
		StartTime:      agg.StartTime,
		DurationSec:    int64(agg.Duration / time.Second),
		DistanceMetres: agg.DistanceMetres,
		ClimbMetres:    agg.ClimbMetres,
		Source:         agg.Source,
		Version:        agg.Version,
		Status:         string(agg.State),
		CreatedAt:      agg.CreatedAt,
		UpdatedAt:      agg.UpdatedAt,
		FailureReason:  agg.FailureReason,
		QuarantinedAt:  agg.QuarantinedAt,
	}
}
