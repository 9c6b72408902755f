package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/safebridge/internal/adapters/sqlite"
	"github.com/example/safebridge/internal/ports/secondary"
)

func TestDecisionLogRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionLogRepository(db)
	ctx := context.Background()

	t.Run("creates decision with all fields", func(t *testing.T) {
		record := &secondary.DecisionRecord{
			ID:         "DEC-0001",
			CaseID:     "CASE-1",
			HospitalID: "H1",
			Decision:   "approved",
			Source:     "manual",
			Reason:     "manual",
			ActorID:    "OPERATOR-kim",
		}
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.GetByID(ctx, "DEC-0001")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Decision != "approved" {
			t.Errorf("Decision = %q, want %q", got.Decision, "approved")
		}
		if got.Source != "manual" {
			t.Errorf("Source = %q, want %q", got.Source, "manual")
		}
		if got.ActorID != "OPERATOR-kim" {
			t.Errorf("ActorID = %q, want %q", got.ActorID, "OPERATOR-kim")
		}
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		err := repo.Create(ctx, &secondary.DecisionRecord{
			ID: "DEC-0002", CaseID: "CASE-1", HospitalID: "H1", Decision: "approved", Source: "carrier-pigeon",
		})
		if err == nil {
			t.Error("expected check constraint violation")
		}
	})
}

func TestDecisionLogRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionLogRepository(db)

	_, err := repo.GetByID(context.Background(), "DEC-9999")
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecisionLogRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionLogRepository(db)
	ctx := context.Background()

	seedDecision(t, db, "DEC-0001", "CASE-1", "H1", "rejected", "2026-01-01 10:00:00")
	seedDecision(t, db, "DEC-0002", "CASE-1", "H2", "approved", "2026-01-01 10:05:00")
	seedDecision(t, db, "DEC-0003", "CASE-2", "H1", "rejected", "2026-01-02 09:00:00")

	tests := []struct {
		name    string
		filters secondary.DecisionFilters
		want    []string
	}{
		{name: "all newest first", want: []string{"DEC-0003", "DEC-0002", "DEC-0001"}},
		{name: "by case", filters: secondary.DecisionFilters{CaseID: "CASE-1"}, want: []string{"DEC-0002", "DEC-0001"}},
		{name: "by hospital", filters: secondary.DecisionFilters{HospitalID: "H1"}, want: []string{"DEC-0003", "DEC-0001"}},
		{name: "by decision", filters: secondary.DecisionFilters{Decision: "approved"}, want: []string{"DEC-0002"}},
		{name: "limit", filters: secondary.DecisionFilters{Limit: 2}, want: []string{"DEC-0003", "DEC-0002"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestDecisionLogRepository_GetNextID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionLogRepository(db)
	ctx := context.Background()

	id, err := repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}
	if id != "DEC-0001" {
		t.Errorf("first ID = %q, want %q", id, "DEC-0001")
	}

	seedDecision(t, db, "DEC-0041", "CASE-1", "H1", "rejected", "2026-01-01 10:00:00")
	id, err = repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}
	if id != "DEC-0042" {
		t.Errorf("next ID = %q, want %q", id, "DEC-0042")
	}
}

func TestDecisionLogRepository_PruneOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionLogRepository(db)
	ctx := context.Background()

	seedDecision(t, db, "DEC-0001", "CASE-1", "H1", "rejected", "2000-01-01 00:00:00")
	seedDecision(t, db, "DEC-0002", "CASE-1", "H2", "rejected", "2000-01-02 00:00:00")
	if err := repo.Create(ctx, &secondary.DecisionRecord{
		ID: "DEC-0003", CaseID: "CASE-1", HospitalID: "H3", Decision: "approved", Source: "push",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := repo.PruneOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	if _, err := repo.GetByID(ctx, "DEC-0003"); err != nil {
		t.Errorf("recent decision pruned: %v", err)
	}
}
