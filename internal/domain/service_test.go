package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/trackbook/internal/track"
)

type fakeRepo struct {
	created     []ActivityAggregate
	byIdemKey   map[string]*ActivityAggregate
	stored      map[string]*ActivityAggregate
	updated     []ActivityAggregate
	deleted     []string
	totals      Totals
	progression []ActivityAggregate

	summarizeSince time.Time
	summarizeSport []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byIdemKey: map[string]*ActivityAggregate{},
		stored:    map[string]*ActivityAggregate{},
	}
}

func (f *fakeRepo) FindByIdempotency(_ context.Context, username, key string) (*ActivityAggregate, error) {
	if key == "" {
		return nil, nil
	}
	if agg, ok := f.byIdemKey[username+"|"+key]; ok {
		return agg, nil
	}
	return nil, nil
}

func (f *fakeRepo) Create(_ context.Context, aggregate ActivityAggregate, key string) error {
	f.created = append(f.created, aggregate)
	f.stored[aggregate.ID] = &aggregate
	if key != "" {
		f.byIdemKey[aggregate.Username+"|"+key] = &aggregate
	}
	return nil
}

func (f *fakeRepo) Get(_ context.Context, username, id string) (*ActivityAggregate, error) {
	agg, ok := f.stored[id]
	if !ok || agg.Username != username {
		return nil, nil
	}
	copied := *agg
	return &copied, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, username string, _ *Cursor, _ int) ([]ActivityAggregate, *Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepo) Update(_ context.Context, aggregate ActivityAggregate) error {
	f.updated = append(f.updated, aggregate)
	f.stored[aggregate.ID] = &aggregate
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, username, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.stored, id)
	return nil
}

func (f *fakeRepo) Summarize(_ context.Context, _ string, sports []string, since time.Time) (Totals, error) {
	f.summarizeSport = sports
	f.summarizeSince = since
	return f.totals, nil
}

func (f *fakeRepo) ListForProgression(_ context.Context, _ string, _ []string, _ time.Time) ([]ActivityAggregate, error) {
	return f.progression, nil
}

func validRecordInput() RecordActivityInput {
	distance := 10000.0
	return RecordActivityInput{
		Username:       "molly",
		Name:           "Morning Run",
		Sport:          track.SportRun,
		Flags:          map[string]bool{"Commute": true},
		StartTime:      time.Date(2026, time.March, 14, 7, 30, 0, 0, time.UTC),
		Duration:       50 * time.Minute,
		DistanceMetres: &distance,
		Source:         "api",
	}
}

func TestRecordActivity(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	agg, replay, err := service.RecordActivity(context.Background(), validRecordInput())
	require.NoError(t, err)
	require.False(t, replay)
	require.NotEmpty(t, agg.ID)
	require.Equal(t, ActivityStatePending, agg.State)
	require.Equal(t, "v1", agg.Version)
	require.NotNil(t, agg.Flags)
	require.Len(t, repo.created, 1)
}

func TestRecordActivityIdempotentReplay(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	input := validRecordInput()
	input.IdempotencyKey = "key-1"

	first, replay, err := service.RecordActivity(context.Background(), input)
	require.NoError(t, err)
	require.False(t, replay)

	second, replay, err := service.RecordActivity(context.Background(), input)
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.created, 1)
}

func TestRecordActivityValidation(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	ctx := context.Background()

	cases := []func(*RecordActivityInput){
		func(in *RecordActivityInput) { in.Username = " " },
		func(in *RecordActivityInput) { in.Name = "" },
		func(in *RecordActivityInput) { in.Sport = "jogging" },
		func(in *RecordActivityInput) { in.StartTime = time.Time{} },
		func(in *RecordActivityInput) { in.Duration = 0 },
		func(in *RecordActivityInput) { d := -5.0; in.DistanceMetres = &d },
		func(in *RecordActivityInput) { c := -1.0; in.ClimbMetres = &c },
		func(in *RecordActivityInput) { e := 11; in.EffortLevel = &e },
		func(in *RecordActivityInput) { in.Flags = map[string]bool{"Night": true} },
	}
	for i, mutate := range cases {
		input := validRecordInput()
		mutate(&input)
		_, _, err := service.RecordActivity(ctx, input)
		require.ErrorIs(t, err, ErrValidation, "case %d", i)
	}
	require.Empty(t, repo.created)
}

func TestImportActivityDerivesStats(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	start := time.Date(2026, time.March, 14, 7, 30, 0, 0, time.UTC)
	ele1, ele2, ele3 := 100.0, 140.0, 120.0
	points := []track.Point{
		{Lat: 51.000, Lon: -1.0, EleMetres: &ele1, Time: start},
		{Lat: 51.005, Lon: -1.0, EleMetres: &ele2, Time: start.Add(3 * time.Minute)},
		{Lat: 51.010, Lon: -1.0, EleMetres: &ele3, Time: start.Add(6 * time.Minute)},
	}

	agg, replay, err := service.ImportActivity(context.Background(), ImportActivityInput{
		Username: "molly",
		Name:     "Morning Run",
		RawSport: "unknown",
		Points:   points,
		Source:   "import",
	})
	require.NoError(t, err)
	require.False(t, replay)

	require.Equal(t, track.SportRun, agg.Sport, "sport inferred from name")
	require.Equal(t, start, agg.StartTime)
	require.Equal(t, 6*time.Minute, agg.Duration)
	require.NotNil(t, agg.DistanceMetres)
	require.Greater(t, *agg.DistanceMetres, 1000.0)
	require.NotNil(t, agg.ClimbMetres)
	require.InDelta(t, 40.0, *agg.ClimbMetres, 1e-9)
}

func TestImportActivityDefaults(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	start := time.Date(2026, time.March, 14, 7, 30, 0, 0, time.UTC)
	points := []track.Point{
		{Lat: 51.000, Lon: -1.0, Time: start},
		{Lat: 51.005, Lon: -1.0, Time: start.Add(3 * time.Minute)},
	}

	agg, _, err := service.ImportActivity(context.Background(), ImportActivityInput{
		Username: "molly",
		Points:   points,
		Source:   "import",
	})
	require.NoError(t, err)
	require.Equal(t, UnnamedActivity, agg.Name)
	require.Equal(t, track.SportOther, agg.Sport)
	require.Nil(t, agg.ClimbMetres, "no altitude data, no climb")
}

func TestImportActivityRejectsBadTrack(t *testing.T) {
	service := NewService(newFakeRepo())
	_, _, err := service.ImportActivity(context.Background(), ImportActivityInput{
		Username: "molly",
		Points:   nil,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetActivityNotFound(t *testing.T) {
	service := NewService(newFakeRepo())
	_, err := service.GetActivity(context.Background(), "molly", "missing")
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestUpdateActivity(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	agg, _, err := service.RecordActivity(context.Background(), validRecordInput())
	require.NoError(t, err)

	effort := 7
	updated, err := service.UpdateActivity(context.Background(), "molly", agg.ID, UpdateActivityInput{
		Name:        "Commute Ride",
		Sport:       track.SportRide,
		Flags:       map[string]bool{"Commute": true, "Race": false},
		EffortLevel: &effort,
		Description: "rainy",
	})
	require.NoError(t, err)
	require.Equal(t, track.SportRide, updated.Sport)
	require.Equal(t, []string{"Commute"}, updated.ActiveFlags())
	require.Len(t, repo.updated, 1)
}

func TestUpdateActivityRejectsFlagsForNewSport(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	agg, _, err := service.RecordActivity(context.Background(), validRecordInput())
	require.NoError(t, err)

	// "Long Run" is valid for Run but not for Ride.
	_, err = service.UpdateActivity(context.Background(), "molly", agg.ID, UpdateActivityInput{
		Name:  agg.Name,
		Sport: track.SportRide,
		Flags: map[string]bool{"Long Run": true},
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.updated)
}

func TestUpdateActivityOwnership(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	agg, _, err := service.RecordActivity(context.Background(), validRecordInput())
	require.NoError(t, err)

	_, err = service.UpdateActivity(context.Background(), "intruder", agg.ID, UpdateActivityInput{
		Name:  "stolen",
		Sport: track.SportRun,
	})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDeleteActivity(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	agg, _, err := service.RecordActivity(context.Background(), validRecordInput())
	require.NoError(t, err)

	require.NoError(t, service.DeleteActivity(context.Background(), "molly", agg.ID))
	require.Equal(t, []string{agg.ID}, repo.deleted)

	err = service.DeleteActivity(context.Background(), "molly", agg.ID)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestSummaryPassesPeriodBound(t *testing.T) {
	repo := newFakeRepo()
	repo.totals = Totals{Activities: 3, DistanceMetres: 42195}
	service := NewService(repo)
	service.now = func() time.Time {
		return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC) // a Saturday
	}

	totals, err := service.Summary(context.Background(), "molly", []string{track.SportRun}, PeriodWeek)
	require.NoError(t, err)
	require.Equal(t, 3, totals.Activities)
	require.Equal(t, []string{track.SportRun}, repo.summarizeSport)
	require.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), repo.summarizeSince)

	_, err = service.Summary(context.Background(), "molly", nil, Period("fortnight"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestProgressionAccumulates(t *testing.T) {
	repo := newFakeRepo()
	d1, d3 := 5000.0, 7000.0
	base := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	repo.progression = []ActivityAggregate{
		{StartTime: base, DistanceMetres: &d1},
		{StartTime: base.AddDate(0, 0, 1)}, // no distance recorded
		{StartTime: base.AddDate(0, 0, 2), DistanceMetres: &d3},
	}
	service := NewService(repo)

	points, err := service.Progression(context.Background(), "molly", nil, PeriodAll)
	require.NoError(t, err)
	require.Len(t, points, 3)
	require.InDelta(t, 5000.0, points[0].TotalDistanceMetres, 1e-9)
	require.InDelta(t, 5000.0, points[1].TotalDistanceMetres, 1e-9)
	require.InDelta(t, 12000.0, points[2].TotalDistanceMetres, 1e-9)
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	start, err := PeriodStart(PeriodAll, now)
	require.NoError(t, err)
	require.True(t, start.IsZero())

	start, err = PeriodStart(PeriodMonth, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), start)

	start, err = PeriodStart(PeriodYear, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
}
