package repository

import (
	"testing"

	"github.com/camden-git/proctorhub/models"
)

func TestRecordVerificationSkipsUncountedOutcomes(t *testing.T) {
	repo := NewMetricsRepository(newTestDB(t))

	// failed/unknown attempts carry neither flag and must not produce rows
	if err := repo.RecordVerification("MULTIPLE_PEOPLE", false, false); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	snapshot, err := repo.ReadAndClearAggregates()
	if err != nil {
		t.Fatalf("read and clear failed: %v", err)
	}
	if len(snapshot.VerificationStats) != 0 {
		t.Fatalf("expected no stats, got %v", snapshot.VerificationStats)
	}
}

func TestReadAndClearAggregates(t *testing.T) {
	repo := NewMetricsRepository(newTestDB(t))

	for i := 0; i < 3; i++ {
		if err := repo.RecordVerification("MULTIPLE_PEOPLE", true, false); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := repo.RecordVerification("MULTIPLE_PEOPLE", false, true); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	if err := repo.RecordVerification("STUDENT_MISSING", true, false); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if err := repo.RecordHeartbeat(&models.Heartbeat{
		DeviceID:        "edge-01",
		DurationSeconds: 60,
		FramesProcessed: 200,
		FramesDiscarded: 150,
		LocalIncidents:  4,
	}); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	snapshot, err := repo.ReadAndClearAggregates()
	if err != nil {
		t.Fatalf("read and clear failed: %v", err)
	}

	mp := snapshot.VerificationStats["MULTIPLE_PEOPLE"]
	if mp.Total != 5 || mp.Validated != 3 || mp.FalsePositive != 2 {
		t.Errorf("MULTIPLE_PEOPLE stats wrong: %+v", mp)
	}
	sm := snapshot.VerificationStats["STUDENT_MISSING"]
	if sm.Total != 1 || sm.Validated != 1 || sm.FalsePositive != 0 {
		t.Errorf("STUDENT_MISSING stats wrong: %+v", sm)
	}

	eff := snapshot.EfficiencyStats
	if eff.TotalFramesProcessed != 200 || eff.TotalFramesDiscarded != 150 || eff.LocalIncidentsTriggered != 4 {
		t.Errorf("efficiency stats wrong: %+v", eff)
	}
	if eff.BandwidthSavedPercent != 75.0 {
		t.Errorf("bandwidth saved: got %v, want 75.0", eff.BandwidthSavedPercent)
	}
}

func TestReadAndClearAggregatesTwiceYieldsEmptyWindow(t *testing.T) {
	repo := NewMetricsRepository(newTestDB(t))

	if err := repo.RecordVerification("MULTIPLE_PEOPLE", true, false); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := repo.RecordHeartbeat(&models.Heartbeat{DeviceID: "edge-01", FramesProcessed: 10}); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	if _, err := repo.ReadAndClearAggregates(); err != nil {
		t.Fatalf("first read and clear failed: %v", err)
	}

	second, err := repo.ReadAndClearAggregates()
	if err != nil {
		t.Fatalf("second read and clear failed: %v", err)
	}
	if len(second.VerificationStats) != 0 {
		t.Errorf("second snapshot should have no verification stats, got %v", second.VerificationStats)
	}
	if second.EfficiencyStats.TotalFramesProcessed != 0 || second.EfficiencyStats.BandwidthSavedPercent != 0 {
		t.Errorf("second snapshot should have zero efficiency stats, got %+v", second.EfficiencyStats)
	}
}

func TestBandwidthSavedPercent(t *testing.T) {
	cases := []struct {
		processed, discarded int
		want                 float64
	}{
		{0, 0, 0},
		{200, 150, 75.0},
		{3, 1, 33.33},
		{100, 0, 0},
		{10, 10, 100.0},
	}
	for _, tc := range cases {
		if got := BandwidthSavedPercent(tc.processed, tc.discarded); got != tc.want {
			t.Errorf("BandwidthSavedPercent(%d, %d) = %v, want %v", tc.processed, tc.discarded, got, tc.want)
		}
	}
}
