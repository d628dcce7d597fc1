package report

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/camden-git/proctorhub/database"
	"github.com/camden-git/proctorhub/media"
	"github.com/camden-git/proctorhub/models"
	"github.com/camden-git/proctorhub/repository"
	"github.com/camden-git/proctorhub/verification"
)

func newTestGenerator(t *testing.T) (*Generator, *repository.IncidentRepository, *repository.MetricsRepository, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "proctorhub_report_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := database.InitGormDB(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	store, err := media.NewLocalStorage(filepath.Join(tempDir, "storage"), map[media.AssetType]string{
		media.AssetTypeStaging:   "staging",
		media.AssetTypeConfirmed: "confirmed",
		media.AssetTypeReport:    "reports",
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	incidents := repository.NewIncidentRepository(db)
	metrics := repository.NewMetricsRepository(db)
	return NewGenerator(incidents, metrics, store), incidents, metrics, tempDir
}

// writeTestJPEG saves a small solid-color image into confirmed storage
func writeTestJPEG(t *testing.T, store media.Store, name string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for x := 0; x < 16; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	if _, err := store.Save(media.AssetTypeConfirmed, name, &buf); err != nil {
		t.Fatalf("save test image: %v", err)
	}
}

func TestGenerateConsumesIncidentsAndMetrics(t *testing.T) {
	gen, incidents, metrics, tempDir := newTestGenerator(t)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		writeTestJPEG(t, gen.Store, name)
		err := incidents.Insert(&models.Incident{
			ImageName:      name,
			AlertType:      verification.AlertMultiplePeople,
			ValidatedCount: 2,
			ValidationTime: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert incident: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := metrics.RecordVerification(verification.AlertMultiplePeople, true, false); err != nil {
			t.Fatalf("record metric: %v", err)
		}
	}
	if err := metrics.RecordVerification(verification.AlertStudentMissing, false, true); err != nil {
		t.Fatalf("record metric: %v", err)
	}
	hb := models.Heartbeat{
		DeviceID:        "edge-1",
		Timestamp:       time.Now(),
		DurationSeconds: 30,
		FramesProcessed: 200,
		FramesDiscarded: 150,
		LocalIncidents:  4,
	}
	if err := metrics.RecordHeartbeat(&hb); err != nil {
		t.Fatalf("record heartbeat: %v", err)
	}

	relPath, stats, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.HasPrefix(relPath, "reports/") || !strings.HasSuffix(relPath, ".pdf") {
		t.Errorf("unexpected report path %q", relPath)
	}
	info, err := os.Stat(filepath.Join(tempDir, "storage", filepath.FromSlash(relPath)))
	if err != nil {
		t.Fatalf("report PDF missing on disk: %v", err)
	}
	if info.Size() == 0 {
		t.Error("report PDF is empty")
	}

	mp := stats.VerificationStats[verification.AlertMultiplePeople]
	if mp.Total != 3 || mp.Validated != 3 {
		t.Errorf("multiple-people stats wrong: %+v", mp)
	}
	sm := stats.VerificationStats[verification.AlertStudentMissing]
	if sm.Total != 1 || sm.FalsePositive != 1 {
		t.Errorf("student-missing stats wrong: %+v", sm)
	}
	if stats.EfficiencyStats.BandwidthSavedPercent != 75.0 {
		t.Errorf("bandwidth saved = %v, want 75.0", stats.EfficiencyStats.BandwidthSavedPercent)
	}

	// generation consumes its inputs
	count, err := incidents.Count()
	if err != nil {
		t.Fatalf("count incidents: %v", err)
	}
	if count != 0 {
		t.Errorf("incident table should be empty after report, got %d rows", count)
	}
	emptied, err := metrics.ReadAndClearAggregates()
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if len(emptied.VerificationStats) != 0 {
		t.Errorf("metric window should be empty after report, got %v", emptied.VerificationStats)
	}
}

func TestGenerateWithNoIncidentsStillProducesReport(t *testing.T) {
	gen, _, _, tempDir := newTestGenerator(t)

	relPath, stats, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "storage", filepath.FromSlash(relPath))); err != nil {
		t.Fatalf("report PDF missing on disk: %v", err)
	}
	if len(stats.VerificationStats) != 0 {
		t.Errorf("expected empty stats, got %v", stats.VerificationStats)
	}
	if stats.EfficiencyStats.BandwidthSavedPercent != 0 {
		t.Errorf("expected zero bandwidth saved, got %v", stats.EfficiencyStats.BandwidthSavedPercent)
	}
}

// lateInsertIncidents confirms an additional incident right after the report
// listing, simulating a worker finishing mid-generation
type lateInsertIncidents struct {
	*repository.IncidentRepository
	late models.Incident
}

func (l *lateInsertIncidents) ListByValidationTime() ([]models.Incident, error) {
	rows, err := l.IncidentRepository.ListByValidationTime()
	if err != nil {
		return nil, err
	}
	if err := l.IncidentRepository.Insert(&l.late); err != nil {
		return nil, err
	}
	return rows, nil
}

func TestGenerateOnlyClearsIncidentsItRendered(t *testing.T) {
	gen, incidents, _, _ := newTestGenerator(t)

	writeTestJPEG(t, gen.Store, "early.jpg")
	err := incidents.Insert(&models.Incident{
		ImageName:      "early.jpg",
		AlertType:      verification.AlertMultiplePeople,
		ValidatedCount: 2,
		ValidationTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert incident: %v", err)
	}

	gen.Incidents = &lateInsertIncidents{
		IncidentRepository: incidents,
		late: models.Incident{
			ImageName:      "late.jpg",
			AlertType:      verification.AlertMultiplePeople,
			ValidatedCount: 3,
			ValidationTime: time.Now(),
		},
	}

	if _, _, err := gen.Generate(); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rows, err := incidents.ListByValidationTime()
	if err != nil {
		t.Fatalf("list incidents: %v", err)
	}
	if len(rows) != 1 || rows[0].ImageName != "late.jpg" {
		t.Fatalf("incident confirmed mid-generation must survive for the next report, got %+v", rows)
	}
}

// failingClearIncidents rejects the post-render incident clear
type failingClearIncidents struct {
	*repository.IncidentRepository
}

func (f *failingClearIncidents) DeleteByNames(imageNames []string) error {
	return errors.New("database is locked")
}

func TestGenerateFailedIncidentClearPreservesMetrics(t *testing.T) {
	gen, incidents, metrics, _ := newTestGenerator(t)

	writeTestJPEG(t, gen.Store, "a.jpg")
	err := incidents.Insert(&models.Incident{
		ImageName:      "a.jpg",
		AlertType:      verification.AlertMultiplePeople,
		ValidatedCount: 2,
		ValidationTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert incident: %v", err)
	}
	if err := metrics.RecordVerification(verification.AlertMultiplePeople, true, false); err != nil {
		t.Fatalf("record metric: %v", err)
	}

	gen.Incidents = &failingClearIncidents{IncidentRepository: incidents}

	if _, _, err := gen.Generate(); err == nil {
		t.Fatal("Generate should surface the incident clear failure")
	}

	// the metrics window must still be waiting for the retry
	snapshot, err := metrics.ReadAndClearAggregates()
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	stats := snapshot.VerificationStats[verification.AlertMultiplePeople]
	if stats.Total != 1 || stats.Validated != 1 {
		t.Errorf("metrics window was consumed despite the failed report, got %+v", stats)
	}
}

func TestGenerateSurvivesMissingIncidentImage(t *testing.T) {
	gen, incidents, _, tempDir := newTestGenerator(t)

	err := incidents.Insert(&models.Incident{
		ImageName:      "vanished.jpg",
		AlertType:      verification.AlertMultiplePeople,
		ValidatedCount: 2,
		ValidationTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert incident: %v", err)
	}

	relPath, _, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate should tolerate a missing image: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "storage", filepath.FromSlash(relPath))); err != nil {
		t.Fatalf("report PDF missing on disk: %v", err)
	}
}
