package handlers

import (
	"log"
	"net/http"

	"github.com/camden-git/proctorhub/repository"
)

// ReportGenerator produces a report document and the consumed stats window
type ReportGenerator interface {
	Generate() (string, repository.StatsSnapshot, error)
}

// ReportHandler triggers report generation on demand
type ReportHandler struct {
	Generator ReportGenerator
}

type reportResponse struct {
	DownloadLink string                   `json:"download_link"`
	Statistics   repository.StatsSnapshot `json:"statistics"`
}

// GenerateReport renders the incident report, consumes the incident table and
// the statistics window, and returns a download link plus the captured stats.
// Generation failures surface their reason; nothing is cleared on failure.
func (rh *ReportHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	relPath, stats, err := rh.Generator.Generate()
	if err != nil {
		log.Printf("GenerateReport: ERROR: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "report_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, reportResponse{
		DownloadLink: "/api/files/" + relPath,
		Statistics:   stats,
	})
}
