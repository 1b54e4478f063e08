package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/trackbook/internal/auth"
	"example.com/trackbook/internal/domain"
)

func writerClaims() *auth.Claims {
	return &auth.Claims{
		Subject: "alice",
		Scopes: map[string]struct{}{
			auth.ScopeActivitiesWrite: {},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func readerClaims() *auth.Claims {
	return &auth.Claims{
		Subject: "alice",
		Scopes: map[string]struct{}{
			auth.ScopeActivitiesRead: {},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func withClaims(req *http.Request, claims *auth.Claims) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestRecordActivitySuccess(t *testing.T) {
	repo := &mockRepo{}
	handler := NewHandler(domain.NewService(repo))

	body := `{"name":"Morning Run","sport":"Run","start_time":"2026-03-10T07:00:00Z","duration_sec":1800,"distance_m":5000,"source":"api"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(body))
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.recordActivity(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp RecordActivityResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ActivityID == "" {
		t.Fatal("expected activity id")
	}
	if resp.Status != "pending" {
		t.Fatalf("expected pending got %s", resp.Status)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created aggregate got %d", len(repo.created))
	}
	if repo.created[0].Username != "alice" {
		t.Fatalf("owner should come from the token, got %s", repo.created[0].Username)
	}
}

func TestRecordActivityRejectsUnknownSport(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	body := `{"name":"X","sport":"Quidditch","start_time":"2026-03-10T07:00:00Z","duration_sec":600,"source":"api"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(body))
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.recordActivity(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestRecordActivityRequiresWriteScope(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(`{}`))
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.recordActivity(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestRecordActivityRequiresToken(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(`{}`))

	rr := httptest.NewRecorder()
	handler.recordActivity(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestImportActivityDerivesStats(t *testing.T) {
	repo := &mockRepo{}
	handler := NewHandler(domain.NewService(repo))

	body := `{"source":"upload","sport":"running","points":[
        {"lat":47.0,"lon":8.0,"ele_m":500,"time":"2026-03-10T07:00:00Z"},
        {"lat":47.001,"lon":8.0,"ele_m":510,"time":"2026-03-10T07:05:00Z"},
        {"lat":47.002,"lon":8.0,"ele_m":505,"time":"2026-03-10T07:10:00Z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/activities/import", strings.NewReader(body))
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.importActivity(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created aggregate got %d", len(repo.created))
	}

	agg := repo.created[0]
	if agg.Name != domain.UnnamedActivity {
		t.Fatalf("expected placeholder name got %q", agg.Name)
	}
	if agg.Sport != "Run" {
		t.Fatalf("expected normalized sport Run got %q", agg.Sport)
	}
	if agg.Duration != 10*time.Minute {
		t.Fatalf("expected 10m duration got %v", agg.Duration)
	}
	if agg.DistanceMetres == nil || *agg.DistanceMetres < 200 {
		t.Fatalf("expected derived distance, got %v", agg.DistanceMetres)
	}
	if agg.ClimbMetres == nil || *agg.ClimbMetres != 10 {
		t.Fatalf("expected climb 10 got %v", agg.ClimbMetres)
	}
}

func TestImportActivityRejectsShortTrack(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	body := `{"source":"upload","points":[{"lat":47.0,"lon":8.0,"time":"2026-03-10T07:00:00Z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/activities/import", strings.NewReader(body))
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.importActivity(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetActivityNotFound(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/missing", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.getActivity(rr, req, "missing")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestListActivitiesReturnsCursor(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		listed: []domain.ActivityAggregate{
			{ID: "act-2", Username: "alice", Name: "Evening Ride", Sport: "Ride", StartTime: now, Duration: time.Hour, Version: "v1", State: domain.ActivityStateSynced, Flags: map[string]bool{}},
			{ID: "act-1", Username: "alice", Name: "Morning Run", Sport: "Run", StartTime: now.Add(-12 * time.Hour), Duration: 30 * time.Minute, Version: "v1", State: domain.ActivityStatePending, Flags: map[string]bool{}},
		},
		nextCursor: &domain.Cursor{StartTime: now.Add(-12 * time.Hour), ID: "act-1"},
	}
	handler := NewHandler(domain.NewService(repo))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities?limit=2", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListActivitiesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(resp.Items))
	}
	if resp.Items[0].ActivityID != "act-2" {
		t.Fatalf("expected newest first, got %s", resp.Items[0].ActivityID)
	}
	if resp.NextCursor == "" {
		t.Fatal("expected next cursor")
	}
}

func TestUpdateActivityRevalidatesFlags(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		byID: map[string]domain.ActivityAggregate{
			"act-1": {ID: "act-1", Username: "alice", Name: "Morning Run", Sport: "Run", StartTime: now, Duration: time.Hour, Version: "v1", State: domain.ActivityStateSynced, Flags: map[string]bool{}},
		},
	}
	handler := NewHandler(domain.NewService(repo))

	// "Long Run" is not a valid flag for Ride.
	body := `{"name":"Morning Run","sport":"Ride","flags":{"Long Run":true}}`
	req := httptest.NewRequest(http.MethodPut, "/v1/activities/act-1", strings.NewReader(body))
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.updateActivity(rr, req, "act-1")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteActivity(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		byID: map[string]domain.ActivityAggregate{
			"act-1": {ID: "act-1", Username: "alice", Name: "Morning Run", Sport: "Run", StartTime: now, Duration: time.Hour, Version: "v1", State: domain.ActivityStateSynced, Flags: map[string]bool{}},
		},
	}
	handler := NewHandler(domain.NewService(repo))

	req := httptest.NewRequest(http.MethodDelete, "/v1/activities/act-1", nil)
	req = withClaims(req, writerClaims())

	rr := httptest.NewRecorder()
	handler.deleteActivity(rr, req, "act-1")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "act-1" {
		t.Fatalf("expected act-1 deleted, got %v", repo.deleted)
	}
}

func TestSummaryFormatsMetricUnits(t *testing.T) {
	last := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		totals: domain.Totals{
			Activities:     3,
			DistanceMetres: 42200,
			Duration:       3*time.Hour + 30*time.Minute,
			ClimbMetres:    320,
			Synced:         2,
			Pending:        1,
			LastActivityAt: &last,
		},
	}
	handler := NewHandler(domain.NewService(repo))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/summary?sports=Run&period=all", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Distance != "42.20 km" {
		t.Fatalf("unexpected distance %q", resp.Distance)
	}
	if resp.Duration != "03:30:00" {
		t.Fatalf("unexpected duration %q", resp.Duration)
	}
	if resp.Climb != "320 m" {
		t.Fatalf("unexpected climb %q", resp.Climb)
	}
	if resp.AverageSpeed == "" || resp.AveragePace == "" {
		t.Fatal("expected formatted speed and pace")
	}
	if got := repo.lastSports; len(got) != 1 || got[0] != "Run" {
		t.Fatalf("expected sports filter forwarded, got %v", got)
	}
}

func TestSummaryImperialUnits(t *testing.T) {
	repo := &mockRepo{
		totals: domain.Totals{
			Activities:     1,
			DistanceMetres: 1609.344,
			Duration:       10 * time.Minute,
		},
	}
	handler := NewHandler(domain.NewService(repo))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/summary?units=imperial", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Distance != "1.00 mi" {
		t.Fatalf("unexpected distance %q", resp.Distance)
	}
}

func TestSummaryRejectsUnknownPeriod(t *testing.T) {
	handler := NewHandler(domain.NewService(&mockRepo{}))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/summary?period=decade", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestProgressionAccumulates(t *testing.T) {
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	d1, d2 := 5000.0, 7000.0
	repo := &mockRepo{
		progression: []domain.ActivityAggregate{
			{ID: "a1", StartTime: base, DistanceMetres: &d1},
			{ID: "a2", StartTime: base.AddDate(0, 0, 2), DistanceMetres: &d2},
		},
	}
	handler := NewHandler(domain.NewService(repo))

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/progression?period=all", nil)
	req = withClaims(req, readerClaims())

	rr := httptest.NewRecorder()
	handler.progression(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ProgressionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Points) != 2 {
		t.Fatalf("expected 2 points got %d", len(resp.Points))
	}
	if resp.Points[1].TotalDistanceMetres != 12000 {
		t.Fatalf("expected cumulative 12000 got %f", resp.Points[1].TotalDistanceMetres)
	}
	if resp.Points[1].TotalDistance != "12.00 km" {
		t.Fatalf("unexpected formatted distance %q", resp.Points[1].TotalDistance)
	}
}

type mockRepo struct {
	created     []domain.ActivityAggregate
	byID        map[string]domain.ActivityAggregate
	listed      []domain.ActivityAggregate
	nextCursor  *domain.Cursor
	deleted     []string
	totals      domain.Totals
	progression []domain.ActivityAggregate
	lastSports  []string
}

func (m *mockRepo) FindByIdempotency(ctx context.Context, username, idempotencyKey string) (*domain.ActivityAggregate, error) {
	return nil, nil
}

func (m *mockRepo) Create(ctx context.Context, aggregate domain.ActivityAggregate, idempotencyKey string) error {
	m.created = append(m.created, aggregate)
	return nil
}

func (m *mockRepo) Get(ctx context.Context, username, activityID string) (*domain.ActivityAggregate, error) {
	agg, ok := m.byID[activityID]
	if !ok || agg.Username != username {
		return nil, nil
	}
	return &agg, nil
}

func (m *mockRepo) ListByUser(ctx context.Context, username string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	return m.listed, m.nextCursor, nil
}

func (m *mockRepo) Update(ctx context.Context, aggregate domain.ActivityAggregate) error {
	if m.byID == nil {
		m.byID = map[string]domain.ActivityAggregate{}
	}
	m.byID[aggregate.ID] = aggregate
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, username, activityID string) error {
	m.deleted = append(m.deleted, activityID)
	return nil
}

func (m *mockRepo) Summarize(ctx context.Context, username string, sports []string, since time.Time) (domain.Totals, error) {
	m.lastSports = sports
	return m.totals, nil
}

func (m *mockRepo) ListForProgression(ctx context.Context, username string, sports []string, since time.Time) ([]domain.ActivityAggregate, error) {
	m.lastSports = sports
	return m.progression, nil
}
