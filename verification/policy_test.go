package verification

import (
	"errors"
	"testing"

	"github.com/camden-git/proctorhub/detection"
)

func TestDecideMultiplePeople(t *testing.T) {
	for count := 0; count <= 5; count++ {
		outcome := Decide(AlertMultiplePeople, detection.Summary{SubjectCount: count}, nil)

		wantValidated := count > 1
		if wantValidated && outcome.Status != StatusValidated {
			t.Errorf("count=%d: got %s, want VALIDATED", count, outcome.Status)
		}
		if !wantValidated && outcome.Status != StatusFalsePositive {
			t.Errorf("count=%d: got %s, want FALSE_POSITIVE", count, outcome.Status)
		}
		if outcome.SubjectCount != count {
			t.Errorf("count=%d: outcome carries count %d", count, outcome.SubjectCount)
		}
	}
}

func TestDecideStudentMissingFaceBackend(t *testing.T) {
	// face backend has no object counts; zero faces validates directly
	for count := 0; count <= 3; count++ {
		outcome := Decide(AlertStudentMissing, detection.Summary{SubjectCount: count}, nil)

		wantValidated := count == 0
		if wantValidated && outcome.Status != StatusValidated {
			t.Errorf("count=%d: got %s, want VALIDATED", count, outcome.Status)
		}
		if !wantValidated && outcome.Status != StatusFalsePositive {
			t.Errorf("count=%d: got %s, want FALSE_POSITIVE", count, outcome.Status)
		}
	}
}

func TestDecideStudentMissingObjectBackendGating(t *testing.T) {
	// empty frame with no proctoring objects must not validate
	empty := detection.Summary{SubjectCount: 0, ObjectCounts: map[string]int{}}
	if got := Decide(AlertStudentMissing, empty, nil); got.Status != StatusFalsePositive {
		t.Errorf("empty scene: got %s, want FALSE_POSITIVE", got.Status)
	}

	// same frame with a laptop present validates
	withLaptop := detection.Summary{SubjectCount: 0, ObjectCounts: map[string]int{"laptop": 1}}
	if got := Decide(AlertStudentMissing, withLaptop, nil); got.Status != StatusValidated {
		t.Errorf("laptop scene: got %s, want VALIDATED", got.Status)
	}

	// a person present is a false positive regardless of objects
	withPerson := detection.Summary{SubjectCount: 1, ObjectCounts: map[string]int{"laptop": 1, "person": 1}}
	if got := Decide(AlertStudentMissing, withPerson, nil); got.Status != StatusFalsePositive {
		t.Errorf("person scene: got %s, want FALSE_POSITIVE", got.Status)
	}
}

func TestDecideUnknownAlertType(t *testing.T) {
	for _, count := range []int{0, 1, 2} {
		outcome := Decide("PHONE_DETECTED", detection.Summary{SubjectCount: count}, nil)
		if outcome.Status != StatusUnknown {
			t.Errorf("count=%d: got %s, want UNKNOWN", count, outcome.Status)
		}
	}
}

func TestDecideDetectorFailurePassesThrough(t *testing.T) {
	detectErr := errors.New("failed to decode image file: staging/x.jpg")
	outcome := Decide(AlertMultiplePeople, detection.Summary{}, detectErr)

	if outcome.Status != StatusFailed {
		t.Fatalf("got %s, want FAILED", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Error("FAILED outcome should carry the failure reason")
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	summary := detection.Summary{SubjectCount: 2, ObjectCounts: map[string]int{"person": 2}}
	first := Decide(AlertMultiplePeople, summary, nil)
	for i := 0; i < 10; i++ {
		if got := Decide(AlertMultiplePeople, summary, nil); got != first {
			t.Fatalf("non-deterministic decision: %+v vs %+v", got, first)
		}
	}
}
