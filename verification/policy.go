// Package verification holds the pure decision policy that maps an edge
// alert and a detection result to a verification verdict. It performs no I/O;
// everything fallible happens in the caller.
package verification

import (
	"github.com/camden-git/proctorhub/detection"
)

// Alert types reported by edge devices
const (
	AlertMultiplePeople = "MULTIPLE_PEOPLE"
	AlertStudentMissing = "STUDENT_MISSING"
)

// Status is the verdict of one verification attempt
type Status string

const (
	StatusValidated     Status = "VALIDATED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
	StatusFailed        Status = "FAILED"
	StatusUnknown       Status = "UNKNOWN"
)

// Outcome is the result of deciding one alert
type Outcome struct {
	Status Status

	// SubjectCount is the detected person/face count the verdict was based on
	SubjectCount int

	// Reason carries the failure cause for StatusFailed outcomes
	Reason string
}

// Decide maps (alert type, detection summary, detection error) to a verdict.
//
//   - MULTIPLE_PEOPLE is validated iff more than one subject was detected.
//   - STUDENT_MISSING is validated iff no subject was detected; when the
//     summary carries object counts (general detector backend) at least one
//     proctoring object must also be present, so a blank or off-camera frame
//     is not mistaken for a missing student.
//   - A detection error passes through as FAILED.
//   - Any other alert type yields UNKNOWN.
func Decide(alertType string, summary detection.Summary, detectErr error) Outcome {
	if detectErr != nil {
		return Outcome{Status: StatusFailed, Reason: detectErr.Error()}
	}

	switch alertType {
	case AlertMultiplePeople:
		if summary.SubjectCount > 1 {
			return Outcome{Status: StatusValidated, SubjectCount: summary.SubjectCount}
		}
		return Outcome{Status: StatusFalsePositive, SubjectCount: summary.SubjectCount}

	case AlertStudentMissing:
		if summary.SubjectCount == 0 && sceneLooksProctored(summary) {
			return Outcome{Status: StatusValidated, SubjectCount: 0}
		}
		return Outcome{Status: StatusFalsePositive, SubjectCount: summary.SubjectCount}

	default:
		return Outcome{Status: StatusUnknown, SubjectCount: summary.SubjectCount}
	}
}

// sceneLooksProctored gates the student-missing verdict for the object
// backend: an empty frame with no exam equipment at all is more likely a
// covered or misaimed camera than a missing student. The face backend has no
// object counts and is not gated.
func sceneLooksProctored(summary detection.Summary) bool {
	if summary.ObjectCounts == nil {
		return true
	}
	return summary.HasAnyOf(detection.ProctoringObjectLabels)
}
