package utils

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestSanitizeAlertType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MULTIPLE_PEOPLE", "MULTIPLE_PEOPLE"},
		{"../../etc/passwd", "etcpasswd"},
		{"type with spaces", "typewithspaces"},
		{"A-B.C/D", "ABCD"},
		{"", ""},
	}
	for _, c := range cases {
		if got := SanitizeAlertType(c.in); got != c.want {
			t.Errorf("SanitizeAlertType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStagedFilename(t *testing.T) {
	arrival := time.Date(2024, 1, 2, 13, 4, 5, 678_000_000, time.UTC)

	got := StagedFilename(arrival, "MULTIPLE_PEOPLE", "cam0/frame.jpg")
	want := "20240102_130405.678_MULTIPLE_PEOPLE_frame.jpg"
	if got != want {
		t.Errorf("StagedFilename = %q, want %q", got, want)
	}

	// windows-style separators must not leak path segments into the name
	got = StagedFilename(arrival, "STUDENT_MISSING", `C:\captures\shot.png`)
	if strings.ContainsAny(got, `/\`) {
		t.Errorf("staged name contains path separators: %q", got)
	}
	if !strings.HasSuffix(got, "_shot.png") {
		t.Errorf("original basename lost: %q", got)
	}

	// hostile original names fall back to a safe placeholder
	got = StagedFilename(arrival, "MULTIPLE_PEOPLE", "")
	if !strings.HasSuffix(got, "_upload.jpg") {
		t.Errorf("empty original name should use placeholder, got %q", got)
	}
}

func TestStagedFilenameOrderMatchesArrivalOrder(t *testing.T) {
	base := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)
	var names []string
	for i := 0; i < 5; i++ {
		names = append(names, StagedFilename(base.Add(time.Duration(i)*137*time.Millisecond), "MULTIPLE_PEOPLE", "f.jpg"))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("staged names not in arrival order: %v", names)
	}
}

func TestIsRasterImage(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.tiff"} {
		if !IsRasterImage(name) {
			t.Errorf("expected %q to be recognized as an image", name)
		}
	}
	for _, name := range []string{"notes.txt", "report.pdf", "noext", "x.jpg.exe"} {
		if IsRasterImage(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}
