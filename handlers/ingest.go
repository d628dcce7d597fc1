package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/camden-git/proctorhub/media"
	"github.com/camden-git/proctorhub/models"
	"github.com/camden-git/proctorhub/repository"
	"github.com/camden-git/proctorhub/utils"
	"github.com/camden-git/proctorhub/workers"
)

// maxUploadBytes bounds a single alert image upload
const maxUploadBytes = 32 << 20

// JobQueuer accepts verification jobs for background processing
type JobQueuer interface {
	QueueJob(job workers.VerificationJob) bool
}

// IngestHandler receives alerts and heartbeats from edge devices
type IngestHandler struct {
	Store     media.Store
	Processor JobQueuer
	Metrics   repository.MetricsRepositoryInterface
}

// alertResponse is returned for an accepted alert. Verification always
// reports PENDING: the edge device never sees the verification outcome.
type alertResponse struct {
	Status             string `json:"status"`
	ServerFilename     string `json:"server_filename"`
	VerificationStatus string `json:"verification_status"`
}

// IngestAlert accepts a multipart alert submission: 'alert_type' and
// 'timestamp' form fields plus an 'image' file. The image is staged to disk
// synchronously; everything else happens in the worker pool after the
// response is written.
func (ih *IngestHandler) IngestAlert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	alertType := r.FormValue("alert_type")
	if alertType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: alert_type"})
		return
	}

	clientTimestamp, err := strconv.ParseFloat(r.FormValue("timestamp"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing or invalid field: timestamp"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required file: image"})
		return
	}
	defer file.Close()

	filename := utils.StagedFilename(time.Now(), alertType, header.Filename)

	if _, err := ih.Store.Save(media.AssetTypeStaging, filename, file); err != nil {
		log.Printf("IngestAlert: ERROR staging image %s: %v", filename, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving file"})
		return
	}

	job := workers.NewVerificationJob(filename, alertType, clientTimestamp)
	if !ih.Processor.QueueJob(job) {
		// the image is staged; a later rescan will pick it up
		log.Printf("IngestAlert: queue full, %s left in staging for later pickup", filename)
	}

	log.Printf("IngestAlert: accepted '%s' alert (edge time %s), staged as %s",
		alertType, time.Unix(int64(clientTimestamp), 0).Format(time.RFC3339), filename)

	writeJSON(w, http.StatusCreated, alertResponse{
		Status:             "ACCEPTED",
		ServerFilename:     filename,
		VerificationStatus: "PENDING",
	})
}

// heartbeatRequest is the periodic edge efficiency self-report
type heartbeatRequest struct {
	DeviceID        string  `json:"device_id"`
	Duration        float64 `json:"duration"`
	FramesProcessed int     `json:"frames_processed"`
	FramesDiscarded int     `json:"frames_discarded"`
	LocalIncidents  int     `json:"local_incidents"`
}

// IngestHeartbeat records an edge device's periodic throughput report
func (ih *IngestHandler) IngestHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: device_id"})
		return
	}
	if req.FramesProcessed < 0 || req.FramesDiscarded < 0 || req.LocalIncidents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Counter fields must be non-negative"})
		return
	}

	hb := models.Heartbeat{
		DeviceID:        req.DeviceID,
		Timestamp:       time.Now(),
		DurationSeconds: req.Duration,
		FramesProcessed: req.FramesProcessed,
		FramesDiscarded: req.FramesDiscarded,
		LocalIncidents:  req.LocalIncidents,
	}
	if err := ih.Metrics.RecordHeartbeat(&hb); err != nil {
		log.Printf("IngestHeartbeat: ERROR recording heartbeat from %s: %v", req.DeviceID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to record heartbeat"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health is the unauthenticated liveness check
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Proctor verification API is running."})
}
