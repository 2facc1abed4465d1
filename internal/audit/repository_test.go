package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
	"github.com/nerrad567/feedlink/internal/infrastructure/database"
	"github.com/nerrad567/feedlink/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)

	event := &Event{Action: ActionStartup, Source: "main"}
	if err := repo.Create(context.Background(), event); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(event.ID) != len("evt-")+8 || event.ID[:4] != "evt-" {
		t.Errorf("ID = %q, want evt-<8 chars>", event.ID)
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}
}

func TestList_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := time.Date(2026, 10, 18, 9, 0, 0, 123, time.UTC)
	in := &Event{
		Action:    ActionPublishFailed,
		Feed:      "freemem",
		Source:    "scheduler",
		Details:   map[string]any{"error": "mqtt: not connected"},
		CreatedAt: created,
	}
	if err := repo.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Events) != 1 {
		t.Fatalf("Total = %d, len = %d, want 1", res.Total, len(res.Events))
	}

	got := res.Events[0]
	if got.ID != in.ID || got.Action != ActionPublishFailed || got.Feed != "freemem" || got.Source != "scheduler" {
		t.Errorf("event = %+v, want %+v", got, in)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Details["error"] != "mqtt: not connected" {
		t.Errorf("Details = %v", got.Details)
	}
}

func TestList_NewestFirstAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	events := []*Event{
		{Action: ActionConnected, Source: "mqtt", CreatedAt: base},
		{Action: ActionDecodeFailed, Feed: "pwm", Source: "control", CreatedAt: base.Add(time.Second)},
		{Action: ActionDecodeFailed, Feed: "led", Source: "control", CreatedAt: base.Add(2 * time.Second)},
		{Action: ActionShutdown, Source: "main", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, e := range events {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Events[0].Action != ActionShutdown || res.Events[3].Action != ActionConnected {
		t.Errorf("order = %v..%v, want newest first", res.Events[0].Action, res.Events[3].Action)
	}

	res, err = repo.List(ctx, Filter{Action: ActionDecodeFailed})
	if err != nil {
		t.Fatalf("List(action) error = %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}

	res, err = repo.List(ctx, Filter{Action: ActionDecodeFailed, Feed: "pwm"})
	if err != nil {
		t.Fatalf("List(action, feed) error = %v", err)
	}
	if res.Total != 1 || res.Events[0].Feed != "pwm" {
		t.Errorf("result = %+v, want the pwm event", res)
	}
}

func TestList_Pagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		e := &Event{Action: ActionReconnected, Source: "mqtt", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || len(res.Events) != 1 {
		t.Errorf("Total = %d, len = %d, want 5 and 1", res.Total, len(res.Events))
	}

	res, err = repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("Limit = %d, Offset = %d, want %d and 0", res.Limit, res.Offset, maxLimit)
	}
}

func TestList_Empty(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Events == nil || len(res.Events) != 0 {
		t.Errorf("Events = %v, want empty non-nil slice", res.Events)
	}
	if res.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", res.Limit, defaultLimit)
	}
}
