package dispatch

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/safebridge/internal/core/effects"
)

// ============================================================================
// Helpers
// ============================================================================

func hospitals(ids ...string) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{HospitalID: id, Name: id + " hospital", Phone: "010-0000-" + id})
	}
	return out
}

func queueIDs(s *State) []string {
	var ids []string
	for _, c := range s.Queue() {
		ids = append(ids, c.HospitalID)
	}
	return ids
}

func findEffects[T effects.Effect](effs []effects.Effect) []T {
	var out []T
	for _, e := range effs {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func autoOpts() Options {
	return Options{AutoDial: true, InterAttemptDelay: 10 * time.Second}
}

// ============================================================================
// Pool tests
// ============================================================================

func TestNewState_QueuesPrimaryOnly(t *testing.T) {
	s := NewState("CASE-1", Tiers{
		Primary:  hospitals("H1", "H2"),
		Backup:   hospitals("B1"),
		Neighbor: hospitals("N1"),
	}, autoOpts())

	if got, want := queueIDs(s), []string{"H1", "H2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	if s.Phase != PhaseDispatching {
		t.Errorf("Phase = %s, want dispatching", s.Phase)
	}
	if got := s.ReserveRemaining(); got != 2 {
		t.Errorf("ReserveRemaining() = %d, want 2", got)
	}
	c, _ := s.Candidate("H1")
	if c.Tier != TierPrimary {
		t.Errorf("H1 tier = %s, want primary", c.Tier)
	}
}

func TestNewState_EmptySearchIsExhausted(t *testing.T) {
	s := NewState("CASE-1", Tiers{}, autoOpts())

	if !s.IsExhausted() {
		t.Error("expected exhausted state for an empty search")
	}
	if s.Phase != PhaseExhausted {
		t.Errorf("Phase = %s, want exhausted", s.Phase)
	}
	if effs := s.Advance(); len(effs) != 0 {
		t.Errorf("Advance() on exhausted state returned %d effects", len(effs))
	}
}

func TestAbsorb_DeduplicatesByHospitalID(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1", "H2")}, autoOpts())

	novel := s.Absorb(append(hospitals("H2", "H3", "H3"), Candidate{}), TierNeighbor)

	if len(novel) != 1 || novel[0].HospitalID != "H3" {
		t.Fatalf("Absorb() novel = %v, want only H3", novel)
	}
	if got, want := queueIDs(s), []string{"H1", "H2", "H3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	c, _ := s.Candidate("H2")
	if c.Tier != TierPrimary {
		t.Errorf("duplicate must not retag the queued candidate, got tier %s", c.Tier)
	}
}

func TestAbsorb_FrozenAfterApproval(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1")}, autoOpts())
	s.Advance()
	s.Resolve(Resolution{HospitalID: "H1", Decision: DecisionApproved, Source: SourcePoll})

	if novel := s.Absorb(hospitals("H9"), TierBackup); novel != nil {
		t.Errorf("Absorb() after approval = %v, want nil", novel)
	}
}

func TestNextEligible_SkipsRejectedAndCalling(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1", "H2", "H3")}, Options{})
	s.markCalling("H1")
	s.Resolve(Resolution{HospitalID: "H2", Decision: DecisionRejected, Source: SourceManual})

	c, effs, ok := s.NextEligible()
	if !ok {
		t.Fatal("NextEligible() ok = false, want true")
	}
	if c.HospitalID != "H3" {
		t.Errorf("NextEligible() = %s, want H3", c.HospitalID)
	}
	if len(effs) != 0 {
		t.Errorf("NextEligible() from queue must not hydrate, got %v", effs)
	}
}

func TestNextEligible_WaitsForInFlightCallBeforeReplenishing(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1"), Backup: hospitals("B1")}, Options{})
	s.markCalling("H1")

	if _, _, ok := s.NextEligible(); ok {
		t.Error("NextEligible() must not pull reserve while a call is in flight")
	}
	if s.IsExhausted() {
		t.Error("state must not be exhausted while a call is in flight")
	}
	if got := s.ReserveRemaining(); got != 1 {
		t.Errorf("ReserveRemaining() = %d, want 1", got)
	}
}

func TestNextEligible_BackupBeforeNeighbor(t *testing.T) {
	s := NewState("CASE-1", Tiers{
		Backup:   hospitals("B1", "B2"),
		Neighbor: hospitals("N1", "N2"),
	}, Options{})

	c, effs, ok := s.NextEligible()
	if !ok || c.HospitalID != "B1" {
		t.Fatalf("NextEligible() = %v/%v, want B1", c.HospitalID, ok)
	}
	if c.Tier != TierBackup {
		t.Errorf("tier = %s, want backup", c.Tier)
	}
	hydrate := findEffects[effects.HydrateRoutesEffect](effs)
	if len(hydrate) != 1 || !reflect.DeepEqual(hydrate[0].HospitalIDs, []string{"B1"}) {
		t.Errorf("hydrate effects = %v, want one for [B1]", hydrate)
	}
	// Only one backup candidate is pulled at a time.
	if got, want := queueIDs(s), []string{"B1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
}

func TestNextEligible_NeighborBatchAfterBackupRunsDry(t *testing.T) {
	s := NewState("CASE-1", Tiers{
		Primary:  hospitals("H1"),
		Backup:   hospitals("H1"),
		Neighbor: hospitals("N1", "N2", "H1"),
	}, Options{})
	s.Resolve(Resolution{HospitalID: "H1", Decision: DecisionRejected, Source: SourceManual})

	if got, want := queueIDs(s), []string{"H1", "N1", "N2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	c, _ := s.Candidate("N2")
	if c.Tier != TierNeighbor {
		t.Errorf("N2 tier = %s, want neighbor", c.Tier)
	}
}

func TestNextEligible_ExhaustedIsIdempotent(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1")}, Options{})
	s.Resolve(Resolution{HospitalID: "H1", Decision: DecisionRejected, Source: SourceManual})

	if !s.IsExhausted() {
		t.Fatal("expected exhausted after the only candidate was rejected")
	}
	for i := 0; i < 3; i++ {
		_, effs, ok := s.NextEligible()
		if ok || len(effs) != 0 {
			t.Errorf("NextEligible() call %d = ok %v effects %v, want no-op", i, ok, effs)
		}
	}
}

func TestUpdateRouting_OnlyTouchesRoutingFields(t *testing.T) {
	s := NewState("CASE-1", Tiers{Primary: hospitals("H1")}, Options{})

	s.UpdateRouting(map[string]RouteInfo{
		"H1": {DistanceKm: 4.2, EtaMinutes: 11},
		"H9": {DistanceKm: 1, EtaMinutes: 1},
	})

	c, _ := s.Candidate("H1")
	if c.DistanceKm != 4.2 || c.EtaMinutes != 11 {
		t.Errorf("routing = %v/%v, want 4.2/11", c.DistanceKm, c.EtaMinutes)
	}
	if c.Name != "H1 hospital" {
		t.Errorf("Name changed to %q", c.Name)
	}
	if _, ok := s.Candidate("H9"); ok {
		t.Error("UpdateRouting must not add candidates")
	}
}
