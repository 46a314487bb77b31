package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/results"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	db, err := NewDB(filepath.Join(t.TempDir(), "races.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(v int) *int { return &v }

var epoch = time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)

func testRace(id string, offset time.Duration, lanes ...results.LaneResult) results.Race {
	return results.Race{
		ID:          id,
		StartedAt:   epoch.Add(offset),
		CompletedAt: epoch.Add(offset + 9*time.Second),
		Lanes:       lanes,
	}
}

func placed(lane, place, finish, reaction int) results.LaneResult {
	return results.LaneResult{
		LaneID: lane, Outcome: results.OutcomePlaced,
		Place: ptr(place), FinishTime: ptr(finish), ReactionTime: ptr(reaction),
	}
}

func fouled(lane, finish, reaction int) results.LaneResult {
	return results.LaneResult{
		LaneID: lane, Outcome: results.OutcomeDQ,
		FinishTime: ptr(finish), ReactionTime: ptr(reaction), FalseStart: true,
	}
}

func dnf(lane, reaction int) results.LaneResult {
	return results.LaneResult{LaneID: lane, Outcome: results.OutcomeDNF, ReactionTime: ptr(reaction)}
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	latest, err := LatestMigrationVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("LatestMigrationVersion: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("version = %d (dirty %v), want %d", version, dirty, latest)
	}
	if latest != 2 {
		t.Errorf("latest = %d, want 2", latest)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)
	m := MigrationsFS()

	if err := db.MigrateDown(m); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	if v, _, _ := db.MigrateVersion(m); v != 1 {
		t.Errorf("after one down, version = %d", v)
	}
	var indexes int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name LIKE 'idx_race%'`).Scan(&indexes); err != nil {
		t.Fatal(err)
	}
	if indexes != 0 {
		t.Errorf("indexes should be dropped, found %d", indexes)
	}

	if err := db.MigrateUp(m); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if v, _, _ := db.MigrateVersion(m); v != 2 {
		t.Errorf("after up, version = %d", v)
	}
}

func TestRecordRace_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	want := testRace("race-1", 0,
		placed(1, 1, 4200, 200),
		fouled(2, 3900, -120),
		dnf(3, 350),
	)
	want.TimedOut = true

	if err := db.RecordRace(want); err != nil {
		t.Fatalf("RecordRace: %v", err)
	}
	got, err := db.Race("race-1")
	if err != nil {
		t.Fatalf("Race: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("race mismatch (-want +got):\n%s", diff)
	}

	var winner int
	if err := db.QueryRow(`SELECT winner_lane FROM races WHERE race_id = ?`, "race-1").Scan(&winner); err != nil {
		t.Fatal(err)
	}
	if winner != 1 {
		t.Errorf("winner_lane = %d", winner)
	}
}

func TestRecordRace_DuplicateLeavesNoPartialRows(t *testing.T) {
	db := setupTestDB(t)
	r := testRace("dup", 0, placed(1, 1, 4000, 180))
	if err := db.RecordRace(r); err != nil {
		t.Fatal(err)
	}
	r.Lanes = append(r.Lanes, placed(2, 2, 4100, 190))
	if err := db.RecordRace(r); err == nil {
		t.Fatal("expected duplicate race ID to fail")
	}

	var lanes int
	if err := db.QueryRow(`SELECT COUNT(*) FROM race_lanes WHERE race_id = 'dup'`).Scan(&lanes); err != nil {
		t.Fatal(err)
	}
	if lanes != 1 {
		t.Errorf("lane rows = %d, want 1", lanes)
	}
}

func TestRace_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Race("nope"); !errors.Is(err, ErrRaceNotFound) {
		t.Errorf("expected ErrRaceNotFound, got %v", err)
	}
}

func TestRaces_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	for i, id := range []string{"a", "b", "c"} {
		if err := db.RecordRace(testRace(id, time.Duration(i)*time.Minute, placed(1, 1, 4000+i, 200))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.Races(2)
	if err != nil {
		t.Fatalf("Races: %v", err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
		if len(r.Lanes) != 1 {
			t.Errorf("race %s has %d lanes", r.ID, len(r.Lanes))
		}
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLaneStats(t *testing.T) {
	db := setupTestDB(t)
	races := []results.Race{
		testRace("r1", 0, placed(1, 1, 4000, 200), placed(2, 2, 4400, 300)),
		testRace("r2", time.Minute, placed(1, 2, 4600, 250), placed(2, 1, 4300, 150)),
		testRace("r3", 2*time.Minute, fouled(1, 3800, -50), dnf(2, 400)),
		testRace("r4", 3*time.Minute, placed(1, 1, 4200, 210)),
	}
	for _, r := range races {
		if err := db.RecordRace(r); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.LaneStats()
	if err != nil {
		t.Fatalf("LaneStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d lanes", len(stats))
	}

	one := stats[0]
	if one.LaneID != 1 || one.Races != 4 || one.Wins != 2 || one.FalseStarts != 1 || one.DNFs != 0 {
		t.Errorf("lane 1 counts = %+v", one)
	}
	if math.Abs(one.FinishMeanMs-4266.666) > 0.01 {
		t.Errorf("lane 1 finish mean = %f", one.FinishMeanMs)
	}
	if one.FinishMedianMs != 4200 {
		t.Errorf("lane 1 finish median = %f", one.FinishMedianMs)
	}
	if one.BestFinishMs == nil || *one.BestFinishMs != 4000 {
		t.Errorf("lane 1 best finish = %v", one.BestFinishMs)
	}
	if one.BestReactionMs == nil || *one.BestReactionMs != 200 {
		t.Errorf("lane 1 best reaction = %v", one.BestReactionMs)
	}
	if math.Abs(one.ReactionMeanMs-220) > 0.01 {
		t.Errorf("lane 1 reaction mean = %f", one.ReactionMeanMs)
	}
	if math.Abs(one.FinishStdDevMs-305.505) > 0.01 {
		t.Errorf("lane 1 finish stddev = %f", one.FinishStdDevMs)
	}

	two := stats[1]
	if two.Races != 3 || two.Wins != 1 || two.DNFs != 1 {
		t.Errorf("lane 2 counts = %+v", two)
	}
	if math.Abs(two.ReactionMeanMs-283.333) > 0.01 {
		t.Errorf("lane 2 reaction mean = %f", two.ReactionMeanMs)
	}
}

func TestLaneStats_SingleSampleHasZeroDeviation(t *testing.T) {
	db := setupTestDB(t)
	if err := db.RecordRace(testRace("solo", 0, placed(1, 1, 4000, 200))); err != nil {
		t.Fatal(err)
	}
	stats, err := db.LaneStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats[0].FinishStdDevMs != 0 || stats[0].FinishMeanMs != 4000 {
		t.Errorf("stats = %+v", stats[0])
	}
	if _, err := json.Marshal(stats); err != nil {
		t.Errorf("stats must be JSON encodable: %v", err)
	}
}

func TestRunMigrateCommand(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	if err := RunMigrateCommand([]string{"status"}, path, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 0") {
		t.Errorf("fresh status:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"up"}, path, &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 2") {
		t.Errorf("after up:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"version", "1"}, path, &out); err != nil {
		t.Fatalf("version 1: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 1") {
		t.Errorf("after version 1:\n%s", out.String())
	}

	if err := RunMigrateCommand([]string{"version"}, path, &out); err == nil {
		t.Error("expected usage error")
	}
	if err := RunMigrateCommand([]string{"sideways"}, path, &out); err == nil {
		t.Error("expected unknown action error")
	}
	if err := RunMigrateCommand(nil, path, &out); err == nil {
		t.Error("expected missing action error")
	}
}

func TestAdminRoutes_RacesDump(t *testing.T) {
	db := setupTestDB(t)
	if err := db.RecordRace(testRace("dumped", 0, placed(1, 1, 4000, 200))); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/races", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var races []results.Race
	if err := json.Unmarshal(rec.Body.Bytes(), &races); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(races) != 1 || races[0].ID != "dumped" {
		t.Errorf("races = %+v", races)
	}
}
