package detection

import (
	"fmt"
	"image"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// SubjectLabel is the class the decision policy counts as "a person in frame"
const SubjectLabel = "person"

// ProctoringObjectLabels are classes whose presence indicates the camera is
// still pointed at a real exam setup. The student-missing policy variant
// requires at least one of these so an off-camera or covered lens frame is
// not validated as "student missing".
var ProctoringObjectLabels = []string{"laptop", "tv", "keyboard", "mouse", "book", "chair"}

// cocoLabels maps SSD class ids to the COCO labels the pipeline cares about.
// Unlisted ids are reported with a synthetic class_N label.
var cocoLabels = map[int]string{
	1:  "person",
	15: "bench",
	27: "backpack",
	31: "handbag",
	44: "bottle",
	47: "cup",
	62: "chair",
	63: "couch",
	67: "dining table",
	72: "tv",
	73: "laptop",
	74: "mouse",
	75: "remote",
	76: "keyboard",
	77: "cell phone",
	84: "book",
	85: "clock",
}

// ObjectDetector counts objects of multiple classes using a MobileNet-SSD
// network trained on COCO. It is the general backend: SubjectCount is the
// person count and ObjectCounts carries everything else.
type ObjectDetector struct {
	net     gocv.Net
	enabled bool

	mu sync.Mutex

	inputSize     int
	confThreshold float32
}

// NewObjectDetector loads the SSD object model. Like the face backend, a
// missing model asset produces a permanently unavailable detector rather
// than a startup failure.
func NewObjectDetector(configPath, modelPath string, confThreshold float32) *ObjectDetector {
	if configPath == "" || modelPath == "" {
		log.Println("detection(object): config or model path is empty, disabling object detector")
		return &ObjectDetector{enabled: false}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		log.Printf("detection(object): ERROR loading network model: config=%s, model=%s", configPath, modelPath)
		return &ObjectDetector{enabled: false}
	}
	log.Printf("detection(object): successfully loaded object detection model")

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		log.Printf("detection(object): failed to set backend: %v", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		log.Printf("detection(object): failed to set target: %v", err)
	}

	return &ObjectDetector{
		net:           net,
		enabled:       true,
		inputSize:     300,
		confThreshold: confThreshold,
	}
}

// Available reports whether the model loaded at startup
func (d *ObjectDetector) Available() bool {
	return d != nil && d.enabled
}

func (d *ObjectDetector) Close() {
	if d != nil && d.enabled {
		d.net.Close()
		log.Println("detection(object): closed network")
		d.enabled = false
	}
}

// Detect runs multi-class object detection on the image at the given path
func (d *ObjectDetector) Detect(imagePath string) (Summary, error) {
	if !d.Available() {
		return Summary{}, fmt.Errorf("object detector: %w", ErrDetectorUnavailable)
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return Summary{}, fmt.Errorf("failed to decode image file: %s", imagePath)
	}
	defer img.Close()

	results := d.detectObjects(img)

	summary := Summary{ObjectCounts: make(map[string]int)}
	for _, res := range results {
		summary.ObjectCounts[res.Label]++
		if res.Label == SubjectLabel {
			summary.SubjectCount++
		}
	}
	log.Printf("detection(object): found %d object(s), %d person(s) in %s", len(results), summary.SubjectCount, imagePath)

	return summary, nil
}

// detectObjects runs the SSD forward pass and parses the [1,1,N,7] output
func (d *ObjectDetector) detectObjects(img gocv.Mat) []DetectionResult {
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	results := []DetectionResult{}

	total := output.Total()
	if total == 0 || total%7 != 0 {
		log.Printf("detection(object): Warning - Unexpected output size %d", total)
		return results
	}

	reshaped := output.Reshape(1, total/7)
	defer reshaped.Close()

	imgWidth := float32(img.Cols())
	imgHeight := float32(img.Rows())

	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		if confidence <= d.confThreshold {
			continue
		}

		classID := int(reshaped.GetFloatAt(i, 1))
		x := int(reshaped.GetFloatAt(i, 3) * imgWidth)
		y := int(reshaped.GetFloatAt(i, 4) * imgHeight)
		w := int(reshaped.GetFloatAt(i, 5)*imgWidth) - x
		h := int(reshaped.GetFloatAt(i, 6)*imgHeight) - y

		results = append(results, DetectionResult{
			Label:      classLabel(classID),
			Confidence: confidence,
			X:          x,
			Y:          y,
			W:          w,
			H:          h,
		})
	}

	return results
}

func classLabel(classID int) string {
	if label, ok := cocoLabels[classID]; ok {
		return label
	}
	return fmt.Sprintf("class_%d", classID)
}
