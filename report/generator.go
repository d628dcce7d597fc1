// Package report renders confirmed incidents and window statistics into a
// PDF document. Generating a report consumes its inputs: the incident rows
// it rendered and the metric aggregates are cleared, but only after the
// document has been successfully written, so a rendering failure never loses
// incident data. Incidents confirmed while a report is rendering are left
// untouched for the next report.
package report

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"

	"github.com/camden-git/proctorhub/media"
	"github.com/camden-git/proctorhub/models"
	"github.com/camden-git/proctorhub/repository"
)

const (
	pageImageWidthMM = 120.0
	pageBreakAtMM    = 250.0

	// incident images are downscaled before embedding so reports stay small
	embedMaxWidthPx = 1200
)

// Generator builds incident reports
type Generator struct {
	Incidents repository.IncidentRepositoryInterface
	Metrics   repository.MetricsRepositoryInterface
	Store     media.Store
}

func NewGenerator(incidents repository.IncidentRepositoryInterface, metrics repository.MetricsRepositoryInterface, store media.Store) *Generator {
	return &Generator{Incidents: incidents, Metrics: metrics, Store: store}
}

// Generate renders all confirmed incidents (validation time ascending) into a
// PDF under the reports directory, captures-and-clears the statistics window,
// and clears the incident table. Returns the report's relative path and the
// statistics snapshot.
func (g *Generator) Generate() (string, repository.StatsSnapshot, error) {
	log.Println("report: starting incident report generation")

	incidents, err := g.Incidents.ListByValidationTime()
	if err != nil {
		return "", repository.StatsSnapshot{}, fmt.Errorf("failed to load incidents for report: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Incident Verification Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Incident Verification Report", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total Validated Incidents: %d", len(incidents)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Report Generated: %s", time.Now().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(incidents) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, "No validated incidents found to report.", "", 1, "L", false, 0, "")
	}

	for i := range incidents {
		g.renderIncident(pdf, &incidents[i])
	}

	if pdf.Err() {
		return "", repository.StatsSnapshot{}, fmt.Errorf("failed to render report document: %w", pdf.Error())
	}

	reportsDir, err := g.Store.EnsureDir(media.AssetTypeReport)
	if err != nil {
		return "", repository.StatsSnapshot{}, fmt.Errorf("failed to ensure reports directory: %w", err)
	}
	reportName := "Incident_Report_" + time.Now().Format("20060102_150405") + ".pdf"
	reportPath := filepath.Join(reportsDir, reportName)

	if err := pdf.OutputFileAndClose(reportPath); err != nil {
		return "", repository.StatsSnapshot{}, fmt.Errorf("failed to write report PDF: %w", err)
	}
	log.Printf("report: PDF generated at %s", reportPath)

	// the document is safely on disk; now consume exactly what it rendered.
	// Only the rows that were listed are deleted, so an incident a worker
	// confirms mid-render survives for the next report. The incident clear
	// runs before the stats capture: if it fails, the metrics window is
	// still intact for the retry.
	names := make([]string, len(incidents))
	for i := range incidents {
		names[i] = incidents[i].ImageName
	}
	if err := g.Incidents.DeleteByNames(names); err != nil {
		return "", repository.StatsSnapshot{}, fmt.Errorf("report written but incident clear failed: %w", err)
	}
	if len(incidents) > 0 {
		log.Printf("report: cleared %d reported incident record(s)", len(incidents))
	}

	stats, err := g.Metrics.ReadAndClearAggregates()
	if err != nil {
		return "", repository.StatsSnapshot{}, fmt.Errorf("report written but stats capture failed: %w", err)
	}

	relPath, err := g.Store.RelativePath(media.AssetTypeReport, reportName)
	if err != nil {
		return "", repository.StatsSnapshot{}, err
	}
	return relPath, stats, nil
}

// renderIncident writes one incident section: heading, the confirmed image
// (or an explicit missing marker), and the incident fields.
func (g *Generator) renderIncident(pdf *fpdf.Fpdf, incident *models.Incident) {
	if pdf.GetY() > pageBreakAtMM-60 {
		pdf.AddPage()
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Incident ID: %s", incident.ImageName), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	if !g.embedImage(pdf, incident.ImageName) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Image Missing: file not found in confirmed storage.", "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Alert Type: %s", incident.AlertType), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Detected Count: %d", incident.ValidatedCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Time: %s", incident.ValidationTime.Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	if incident.CapturedAt != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Captured: %s", time.Unix(*incident.CapturedAt, 0).Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(4)
}

// embedImage downscales and embeds the incident's confirmed image. Returns
// false when the file is absent or unreadable; the caller renders the
// explicit missing marker instead.
func (g *Generator) embedImage(pdf *fpdf.Fpdf, imageName string) bool {
	relPath, err := g.Store.RelativePath(media.AssetTypeConfirmed, imageName)
	if err != nil {
		return false
	}
	fullPath, err := g.Store.GetFullPath(relPath)
	if err != nil {
		return false
	}

	img, err := imaging.Open(fullPath)
	if err != nil {
		log.Printf("report: could not open incident image %s: %v", imageName, err)
		return false
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return false
	}
	if bounds.Dx() > embedMaxWidthPx {
		img = imaging.Resize(img, embedMaxWidthPx, 0, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		log.Printf("report: could not encode incident image %s: %v", imageName, err)
		return false
	}

	heightMM := pageImageWidthMM * float64(bounds.Dy()) / float64(bounds.Dx())
	if pdf.GetY()+heightMM > pageBreakAtMM {
		pdf.AddPage()
	}

	opts := fpdf.ImageOptions{ImageType: "JPEG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(imageName, opts, &buf)
	pdf.ImageOptions(imageName, 10, pdf.GetY(), pageImageWidthMM, heightMM, true, opts, 0, "")
	pdf.Ln(2)
	return true
}
