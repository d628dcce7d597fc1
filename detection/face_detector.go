package detection

import (
	"fmt"
	"image"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// FaceDetector counts faces using the res10 SSD caffemodel. It is the
// specialized backend: SubjectCount is the face count and no other classes
// are reported.
type FaceDetector struct {
	net     gocv.Net
	enabled bool

	// gocv.Net.Forward is not reentrant on a single handle
	mu sync.Mutex

	// configuration parameters used during detection
	inputSizeW    int
	inputSizeH    int
	scaleFactor   float64
	meanVal       gocv.Scalar
	confThreshold float32
}

// NewFaceDetector loads the DNN face model. A missing or corrupt model asset
// yields a permanently unavailable detector, not a startup failure: every
// Detect call will return ErrDetectorUnavailable instead.
func NewFaceDetector(configPath, modelPath string, confThreshold float32) *FaceDetector {
	if configPath == "" || modelPath == "" {
		log.Println("detection(face): config or model path is empty, disabling face detector")
		return &FaceDetector{enabled: false}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		log.Printf("detection(face): ERROR loading network model: config=%s, model=%s", configPath, modelPath)
		return &FaceDetector{enabled: false}
	}
	log.Printf("detection(face): successfully loaded face detection model")

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("detection(face): Set backend/target to CUDA")
	} else {
		if cudaBackendErr != nil {
			log.Printf("detection(face): CUDA Backend not available or failed: %v. Using default backend.", cudaBackendErr)
		}
		if cudaTargetErr != nil {
			log.Printf("detection(face): CUDA Target not available or failed: %v. Using default target.", cudaTargetErr)
		}

		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detection(face): Set backend/target to CPU (Default)")
	}

	return &FaceDetector{
		net:           net,
		enabled:       true,
		inputSizeW:    300,
		inputSizeH:    300,
		scaleFactor:   1.0,
		meanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		confThreshold: confThreshold,
	}
}

// Available reports whether the model loaded at startup
func (d *FaceDetector) Available() bool {
	return d != nil && d.enabled
}

func (d *FaceDetector) Close() {
	if d != nil && d.enabled {
		d.net.Close()
		log.Println("detection(face): closed network")
		d.enabled = false
	}
}

// Detect runs face detection on the image at the given path
func (d *FaceDetector) Detect(imagePath string) (Summary, error) {
	if !d.Available() {
		return Summary{}, fmt.Errorf("face detector: %w", ErrDetectorUnavailable)
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return Summary{}, fmt.Errorf("failed to decode image file: %s", imagePath)
	}
	defer img.Close()

	results := d.detectFaces(img)
	log.Printf("detection(face): found %d face(s) in %s", len(results), imagePath)

	return Summary{SubjectCount: len(results)}, nil
}

// detectFaces runs face detection using the loaded DNN model
func (d *FaceDetector) detectFaces(img gocv.Mat) []DetectionResult {
	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, d.scaleFactor, image.Pt(d.inputSizeW, d.inputSizeH), d.meanVal, false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	detectionsMat := d.net.Forward("")
	d.mu.Unlock()
	defer detectionsMat.Close()

	results := []DetectionResult{}

	sizes := detectionsMat.Size()
	if len(sizes) < 3 {
		log.Printf("detection(face): Warning - Unexpected output matrix dimensions: %v", sizes)
		return results
	}

	numDetections := sizes[2]
	if numDetections == 0 {
		return results
	}

	// reshape the Mat to 2D: [N, 7] for easier access with GetFloatAt(row, col)
	detectionsData := detectionsMat.Reshape(1, numDetections)
	defer detectionsData.Close()

	for i := 0; i < numDetections; i++ {
		confidence := detectionsData.GetFloatAt(i, 2)
		if confidence <= d.confThreshold {
			continue
		}

		xMin := detectionsData.GetFloatAt(i, 3) * imgWidth
		yMin := detectionsData.GetFloatAt(i, 4) * imgHeight
		xMax := detectionsData.GetFloatAt(i, 5) * imgWidth
		yMax := detectionsData.GetFloatAt(i, 6) * imgHeight

		xMin = max(0, xMin)
		yMin = max(0, yMin)
		xMax = min(imgWidth, xMax)
		yMax = min(imgHeight, yMax)

		if xMax > xMin && yMax > yMin {
			results = append(results, DetectionResult{
				Label:      "face",
				Confidence: confidence,
				X:          int(xMin),
				Y:          int(yMin),
				W:          int(xMax - xMin),
				H:          int(yMax - yMin),
			})
		}
	}

	return results
}
