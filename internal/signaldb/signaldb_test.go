package signaldb

import (
	"path/filepath"
	"testing"
	"time"
)

const testMatchBandwidthHz = 1000.0

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "signals.db"), testMatchBandwidthHz)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertThenGet(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	r := Record{
		ID: "sig-1", CenterFreq: 14.2e6, PeakFreq: 14.201e6, Bandwidth: 2500,
		PeakPower: -40, AvgPower: -45, FirstSeen: now, LastSeen: now, HitCount: 1,
	}
	if err := s.UpsertSignal(r); err != nil {
		t.Fatalf("UpsertSignal: %v", err)
	}
	got, err := s.GetSignal("sig-1")
	if err != nil {
		t.Fatalf("GetSignal: %v", err)
	}
	if got.CenterFreq != r.CenterFreq || !got.Active {
		t.Errorf("got %+v, want active record with center freq %v", got, r.CenterFreq)
	}
	if got.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", got.HitCount)
	}
}

func TestUpsertUpdatesExistingRowByID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	base := Record{ID: "sig-1", CenterFreq: 1e6, PeakFreq: 1e6, FirstSeen: now, LastSeen: now, HitCount: 1}
	if err := s.UpsertSignal(base); err != nil {
		t.Fatalf("UpsertSignal: %v", err)
	}
	base.HitCount = 1
	base.PeakPower = -10
	if err := s.UpsertSignal(base); err != nil {
		t.Fatalf("UpsertSignal (update): %v", err)
	}
	all, err := s.GetSignals(false)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one row after re-upsert, got %d", len(all))
	}
	if all[0].HitCount != 2 {
		t.Errorf("HitCount = %d, want 2 (summed delta)", all[0].HitCount)
	}
	if all[0].PeakPower != 0 {
		t.Errorf("PeakPower = %v, want max(0, -10) = 0", all[0].PeakPower)
	}
}

func TestUpsertMergesByFrequencyProximityAcrossIDs(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	first := Record{ID: "sig-1", CenterFreq: 14.200e6, PeakFreq: 14.200e6, PeakPower: -50, FirstSeen: now, LastSeen: now, HitCount: 1}
	if err := s.UpsertSignal(first); err != nil {
		t.Fatalf("UpsertSignal: %v", err)
	}

	// Same signal reacquired under a new caller-assigned ID, drifted by a
	// few hundred Hz — well inside testMatchBandwidthHz.
	second := Record{ID: "sig-2", CenterFreq: 14.200300e6, PeakFreq: 14.200300e6, PeakPower: -30, FirstSeen: now, LastSeen: now, HitCount: 1}
	if err := s.UpsertSignal(second); err != nil {
		t.Fatalf("UpsertSignal (merge): %v", err)
	}

	all, err := s.GetSignals(false)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the drifted reacquisition to merge into one row, got %d", len(all))
	}
	if all[0].ID != "sig-1" {
		t.Errorf("expected the original row's ID to survive, got %q", all[0].ID)
	}
	if all[0].HitCount != 2 {
		t.Errorf("HitCount = %d, want 2", all[0].HitCount)
	}
	if all[0].PeakPower != -30 {
		t.Errorf("PeakPower = %v, want max(-50, -30) = -30", all[0].PeakPower)
	}

	// Far enough away that it must become its own row.
	third := Record{ID: "sig-3", CenterFreq: 21.0e6, PeakFreq: 21.0e6, FirstSeen: now, LastSeen: now, HitCount: 1}
	if err := s.UpsertSignal(third); err != nil {
		t.Fatalf("UpsertSignal (distinct): %v", err)
	}
	all, err = s.GetSignals(false)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected a distant signal to insert as a new row, got %d rows", len(all))
	}
}

func TestMarkLostExcludedFromActiveOnly(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.UpsertSignal(Record{ID: "sig-1", CenterFreq: 1e6, FirstSeen: now, LastSeen: now, HitCount: 1})
	if err := s.MarkLost(1e6, now); err != nil {
		t.Fatalf("MarkLost: %v", err)
	}
	active, err := s.GetSignals(true)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active signals after MarkLost, got %d", len(active))
	}
	all, _ := s.GetSignals(false)
	if len(all) != 1 {
		t.Errorf("expected the row to remain for history, got %d rows", len(all))
	}
}

func TestClassifySignalUnknownIDErrors(t *testing.T) {
	s := openTestStore(t)
	if err := s.ClassifySignal("nope", "FM", "test"); err == nil {
		t.Error("expected error classifying unknown signal ID")
	}
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.UpsertSignal(Record{ID: "a", CenterFreq: 1e6, FirstSeen: now, LastSeen: now, HitCount: 1})
	s.UpsertSignal(Record{ID: "b", CenterFreq: 21e6, FirstSeen: now, LastSeen: now, HitCount: 1})
	s.ClassifySignal("a", "AM broadcast", "")
	s.MarkLost(21e6, now)

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalSignals != 2 || stats.ActiveSignals != 1 || stats.Classified != 1 {
		t.Errorf("stats = %+v, want {2 1 1}", stats)
	}
}
