package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultStagingSubDir   = "staging"
	DefaultConfirmedSubDir = "confirmed"
	DefaultReportsSubDir   = "reports"
)

const (
	defaultVerifyQueueSize   = 200
	defaultNumVerifyWorkers  = 4
	defaultVerifyTimeoutSecs = 30
	defaultConfThreshold     = 0.5
)

// DetectorBackend selects which DNN backend the verification workers run
type DetectorBackend string

const (
	BackendFace   DetectorBackend = "face"
	BackendObject DetectorBackend = "object"
)

type Config struct {
	// API key authentication. If APIKeyHash is set it takes precedence and
	// inbound keys are checked with bcrypt; otherwise APIKey is compared
	// in constant time.
	APIKey     string
	APIKeyHash string

	// database path
	DatabasePath string

	// image storage configuration
	StoragePath   string // primary root for staged/confirmed images and reports
	StagingPath   string // full-calculated path for freshly ingested images
	ConfirmedPath string // full-calculated path for validated incident images
	ReportsPath   string // full-calculated path for generated PDF reports

	// worker settings
	VerifyQueueSize  int
	NumVerifyWorkers int
	VerifyTimeout    time.Duration

	// detector settings
	Backend              DetectorBackend
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	ObjectDNNConfigPath  string
	ObjectDNNModelPath   string
	ConfidenceThreshold  float32
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 || val > 1 {
		log.Printf("Warning: Invalid %s '%s'. Using default %.2f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	apiKey := os.Getenv("API_KEY")
	apiKeyHash := os.Getenv("API_KEY_HASH")
	if apiKey == "" && apiKeyHash == "" {
		return Config{}, fmt.Errorf("neither API_KEY nor API_KEY_HASH is set; refusing to start an open ingestion endpoint")
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", "incidents.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "incident_storage"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	stagingSubDir := getEnvOrDefault("STAGING_SUBDIR", DefaultStagingSubDir)
	confirmedSubDir := getEnvOrDefault("CONFIRMED_SUBDIR", DefaultConfirmedSubDir)
	reportsSubDir := getEnvOrDefault("REPORTS_SUBDIR", DefaultReportsSubDir)

	queueSize := getEnvIntOrDefault("VERIFY_QUEUE_SIZE", defaultVerifyQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_VERIFY_WORKERS", defaultNumVerifyWorkers)
	timeoutSecs := getEnvIntOrDefault("VERIFY_TIMEOUT_SECONDS", defaultVerifyTimeoutSecs)

	backend := DetectorBackend(getEnvOrDefault("DETECTOR_BACKEND", string(BackendFace)))
	if backend != BackendFace && backend != BackendObject {
		return Config{}, fmt.Errorf("invalid DETECTOR_BACKEND '%s': must be '%s' or '%s'", backend, BackendFace, BackendObject)
	}

	faceDNNConfig := getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt")
	faceDNNModel := getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	objectDNNConfig := getEnvOrDefault("OBJECT_DNN_CONFIG_PATH", "./models/ssd_mobilenet_v2_coco.pbtxt")
	objectDNNModel := getEnvOrDefault("OBJECT_DNN_MODEL_PATH", "./models/ssd_mobilenet_v2_coco.pb")

	confThreshold := getEnvFloatOrDefault("DETECTION_CONFIDENCE", defaultConfThreshold)

	cfg := Config{
		APIKey:               apiKey,
		APIKeyHash:           apiKeyHash,
		DatabasePath:         dbPath,
		StoragePath:          absStorage,
		StagingPath:          filepath.Join(absStorage, stagingSubDir),
		ConfirmedPath:        filepath.Join(absStorage, confirmedSubDir),
		ReportsPath:          filepath.Join(absStorage, reportsSubDir),
		VerifyQueueSize:      queueSize,
		NumVerifyWorkers:     numWorkers,
		VerifyTimeout:        time.Duration(timeoutSecs) * time.Second,
		Backend:              backend,
		FaceDNNNetConfigPath: faceDNNConfig,
		FaceDNNNetModelPath:  faceDNNModel,
		ObjectDNNConfigPath:  objectDNNConfig,
		ObjectDNNModelPath:   objectDNNModel,
		ConfidenceThreshold:  float32(confThreshold),
	}

	return cfg, nil
}
