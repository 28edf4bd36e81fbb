package settings

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestGateLifecycle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	at := created.Add(time.Hour)

	mock.ExpectExec("INSERT INTO registration_settings").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT is_open, updated_at FROM registration_settings").
		WillReturnRows(pgxmock.NewRows([]string{"is_open", "updated_at"}).AddRow(true, created))
	g, err := repo.GetGate(ctx)
	if err != nil {
		t.Fatalf("get gate: %v", err)
	}
	if !g.IsOpen || !g.UpdatedAt.Equal(created) {
		t.Fatalf("unexpected gate %+v", g)
	}

	mock.ExpectQuery("is_open = NOT registration_settings.is_open").
		WithArgs(at).
		WillReturnRows(pgxmock.NewRows([]string{"is_open", "updated_at"}).AddRow(false, at))
	g, err = repo.ToggleGate(ctx, at)
	if err != nil {
		t.Fatalf("toggle gate: %v", err)
	}
	if g.IsOpen {
		t.Fatal("toggle from open should close the gate")
	}

	mock.ExpectQuery("is_open = EXCLUDED.is_open").
		WithArgs(true, at).
		WillReturnRows(pgxmock.NewRows([]string{"is_open", "updated_at"}).AddRow(true, at))
	g, err = repo.SetGate(ctx, true, at)
	if err != nil {
		t.Fatalf("set gate: %v", err)
	}
	if !g.IsOpen {
		t.Fatal("explicit set should open the gate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEventDefaultsWhenUnset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)

	mock.ExpectQuery("FROM event_settings").WillReturnError(pgx.ErrNoRows)
	e, err := repo.GetEvent(context.Background())
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if e.EventName != "" || e.DisplayName("Our event") != "Our event" {
		t.Fatalf("expected empty settings, got %+v", e)
	}
}
