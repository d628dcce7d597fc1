package workers

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/camden-git/proctorhub/detection"
	"github.com/camden-git/proctorhub/media"
	"github.com/camden-git/proctorhub/models"
	"github.com/camden-git/proctorhub/repository"
	"github.com/camden-git/proctorhub/utils"
	"github.com/camden-git/proctorhub/verification"
)

// VerificationJob is the explicit record of one accepted alert awaiting
// re-verification. The submitter never receives a result; outcomes are
// visible only through logs, the incident table and the metric counters.
type VerificationJob struct {
	ID              string // job identifier, for log correlation
	StagedFilename  string
	AlertType       string
	ClientTimestamp float64 // edge-reported epoch seconds
	EnqueuedAt      time.Time
}

// NewVerificationJob builds a job record for a freshly staged image
func NewVerificationJob(stagedFilename, alertType string, clientTimestamp float64) VerificationJob {
	return VerificationJob{
		ID:              uuid.NewString(),
		StagedFilename:  stagedFilename,
		AlertType:       alertType,
		ClientTimestamp: clientTimestamp,
		EnqueuedAt:      time.Now(),
	}
}

// VerificationProcessor runs the verification pipeline over a bounded worker
// pool: detect, decide, then dispose of the staged file and write the store
// rows. Each accepted alert gets exactly one verification attempt.
type VerificationProcessor struct {
	JobQueue chan VerificationJob
	Detector detection.Detector
	Store    media.Store
	Timeout  time.Duration

	Incidents repository.IncidentRepositoryInterface
	Metrics   repository.MetricsRepositoryInterface

	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
}

// NewVerificationProcessor starts the worker pool. The detector handle is
// read-only after load and shared by all workers.
func NewVerificationProcessor(detector detection.Detector, store media.Store,
	incidents repository.IncidentRepositoryInterface, metrics repository.MetricsRepositoryInterface,
	queueSize, numWorkers int, timeout time.Duration) *VerificationProcessor {

	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &VerificationProcessor{
		JobQueue:  make(chan VerificationJob, queueSize),
		Detector:  detector,
		Store:     store,
		Timeout:   timeout,
		Incidents: incidents,
		Metrics:   metrics,
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d verification worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

// worker processes jobs from the queue until stopped
func (vp *VerificationProcessor) worker(id int) {
	defer vp.Wg.Done()

	log.Printf("Verification worker %d started", id)
	for {
		select {
		case job, ok := <-vp.JobQueue:
			if !ok {
				log.Printf("Verification worker %d stopping: Job queue closed", id)
				return
			}

			log.Printf("Worker %d: Received job %s (type '%s') for: %s", id, job.ID, job.AlertType, job.StagedFilename)
			vp.processJob(id, job)

			vp.Mutex.Lock()
			delete(vp.Pending, job.StagedFilename)
			vp.Mutex.Unlock()

		case <-vp.StopChan:
			log.Printf("Verification worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// processJob runs one verification attempt end to end
func (vp *VerificationProcessor) processJob(id int, job VerificationJob) {
	stagedRel, err := vp.Store.RelativePath(media.AssetTypeStaging, job.StagedFilename)
	if err != nil {
		log.Printf("Worker %d: ERROR resolving staged path for job %s: %v. Abandoning job.", id, job.ID, err)
		return
	}
	stagedAbs, err := vp.Store.GetFullPath(stagedRel)
	if err != nil {
		log.Printf("Worker %d: ERROR resolving staged path for job %s: %v. Abandoning job.", id, job.ID, err)
		return
	}

	summary, detectErr := vp.detectWithTimeout(stagedAbs)
	outcome := verification.Decide(job.AlertType, summary, detectErr)
	log.Printf("Worker %d: Job %s verdict %s (subjects: %d) for %s", id, job.ID, outcome.Status, outcome.SubjectCount, job.StagedFilename)

	switch outcome.Status {
	case verification.StatusValidated:
		if !vp.confirmIncident(id, job, outcome, stagedAbs, stagedRel) {
			// the staged file stays put and the startup rescan will retry
			// this image; counting it now would double the metric when the
			// retry succeeds
			return
		}
	default:
		// false positives, failures and unknown alert types all discard the
		// staged image
		if err := vp.Store.Delete(stagedRel); err != nil {
			log.Printf("Worker %d: ERROR deleting staged file %s: %v", id, job.StagedFilename, err)
		}
	}

	vp.recordMetric(id, job, outcome)
}

// detectWithTimeout runs inference with the configured per-job budget so a
// hung model call cannot tie up a pool slot indefinitely. On expiry the
// outcome is FAILED and disposition proceeds; the abandoned inference
// goroutine is left to finish in the background.
func (vp *VerificationProcessor) detectWithTimeout(imagePath string) (detection.Summary, error) {
	if vp.Timeout <= 0 {
		return vp.Detector.Detect(imagePath)
	}

	type detectResult struct {
		summary detection.Summary
		err     error
	}
	resultCh := make(chan detectResult, 1)
	go func() {
		summary, err := vp.Detector.Detect(imagePath)
		resultCh <- detectResult{summary, err}
	}()

	select {
	case res := <-resultCh:
		return res.summary, res.err
	case <-time.After(vp.Timeout):
		return detection.Summary{}, fmt.Errorf("detection timed out after %s", vp.Timeout)
	}
}

// confirmIncident performs the validated-alert disposition: idempotent
// incident insert, then relocation of the image into the confirmed directory.
// A failure at either step abandons the job with the staged file left in
// staging so the startup rescan can retry it; returns whether the disposition
// completed.
func (vp *VerificationProcessor) confirmIncident(id int, job VerificationJob, outcome verification.Outcome, stagedAbs, stagedRel string) bool {
	incident := models.Incident{
		ImageName:      job.StagedFilename,
		AlertType:      job.AlertType,
		ValidatedCount: outcome.SubjectCount,
		ValidationTime: time.Now(),
		CapturedAt:     utils.GetCaptureTime(stagedAbs),
	}

	if err := vp.Incidents.Insert(&incident); err != nil {
		log.Printf("Worker %d: ERROR inserting incident for job %s: %v. Leaving %s in staging.", id, job.ID, err, job.StagedFilename)
		return false
	}

	if _, err := vp.Store.Move(job.StagedFilename, media.AssetTypeStaging, media.AssetTypeConfirmed); err != nil {
		log.Printf("Worker %d: ERROR relocating %s to confirmed storage: %v. Leaving it in staging.", id, job.StagedFilename, err)
		return false
	}
	return true
}

// recordMetric appends the accuracy counter row. Failed and unknown attempts
// are deliberately not counted, and neither is an abandoned confirmation: the
// rescan retry records the metric once when its disposition completes.
func (vp *VerificationProcessor) recordMetric(id int, job VerificationJob, outcome verification.Outcome) {
	isValidated := outcome.Status == verification.StatusValidated
	isFalsePositive := outcome.Status == verification.StatusFalsePositive
	if !isValidated && !isFalsePositive {
		return
	}
	if err := vp.Metrics.RecordVerification(job.AlertType, isValidated, isFalsePositive); err != nil {
		log.Printf("Worker %d: ERROR recording metric for job %s: %v", id, job.ID, err)
	}
}

// QueueJob queues a verification job if the same staged file is not already
// pending. Returns false when the file is pending or the queue is full.
func (vp *VerificationProcessor) QueueJob(job VerificationJob) bool {
	vp.Mutex.Lock()
	if vp.Pending[job.StagedFilename] {
		vp.Mutex.Unlock()
		return false
	}

	vp.Pending[job.StagedFilename] = true
	vp.Mutex.Unlock()

	select {
	case vp.JobQueue <- job:
		log.Printf("Queued verification job %s for: %s", job.ID, job.StagedFilename)
		return true
	default:
		log.Printf("WARNING: Verification job queue full. Failed to queue job for: %s", job.StagedFilename)
		vp.Mutex.Lock()
		delete(vp.Pending, job.StagedFilename)
		vp.Mutex.Unlock()
		return false
	}
}

// RequeueStaged re-enqueues images left in the staging directory by an
// earlier crash or a store failure. Natural sort of the timestamp-prefixed
// filenames restores arrival order.
func (vp *VerificationProcessor) RequeueStaged() int {
	names, err := vp.Store.List(media.AssetTypeStaging)
	if err != nil {
		log.Printf("Verification: ERROR scanning staging directory: %v", err)
		return 0
	}
	natsort.Sort(names)

	queued := 0
	for _, name := range names {
		if !utils.IsRasterImage(name) {
			continue
		}
		alertType := alertTypeFromStagedName(name)
		if vp.QueueJob(NewVerificationJob(name, alertType, 0)) {
			queued++
		}
	}
	if queued > 0 {
		log.Printf("Verification: re-queued %d leftover staged image(s)", queued)
	}
	return queued
}

// alertTypeFromStagedName recovers the alert type embedded in a staged
// filename (timestamp_ALERTTYPE_original). Unknown shapes verify as UNKNOWN
// and get cleaned up by the normal disposition path.
func alertTypeFromStagedName(name string) string {
	// 20060102_150405.000_<type>_<original>
	const tsLen = len("20060102_150405.000_")
	if len(name) <= tsLen {
		return ""
	}
	rest := name[tsLen:]
	for _, known := range []string{verification.AlertMultiplePeople, verification.AlertStudentMissing} {
		if len(rest) > len(known) && rest[:len(known)] == known && rest[len(known)] == '_' {
			return known
		}
	}
	return ""
}

func (vp *VerificationProcessor) Stop() {
	log.Println("Stopping verification workers...")
	close(vp.StopChan)
	vp.Wg.Wait()
	log.Println("All verification workers stopped")
}
