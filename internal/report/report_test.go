package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, "PointPCA2", "ref.ply vs test.ply",
		[]string{"linearity_diff_mean", "point_to_plane_mean"}, []float64{0.1, 0.02})
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<html", "PointPCA2", "point_to_plane_mean"} {
		if !strings.Contains(html, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestWriteHTML_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, "t", "", []string{"a"}, nil); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if err := WriteHTML(&buf, "t", "", nil, nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestWriteHistogram(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = math.Sin(float64(i)) * float64(i%7)
	}
	path := filepath.Join(t.TempDir(), "hist.png")
	if err := WriteHistogram(path, "point_to_point", values, 0); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestWriteHistogram_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := WriteHistogram(filepath.Join(dir, "h.png"), "t", nil, 10); err == nil {
		t.Error("expected error for no values")
	}
	if err := WriteHistogram(filepath.Join(dir, "h.png"), "t", []float64{1, math.NaN()}, 10); err == nil {
		t.Error("expected error for NaN")
	}
	if err := WriteHistogram(filepath.Join(dir, "h.unknown"), "t", []float64{1, 2}, 10); err == nil {
		t.Error("expected error for unknown image format")
	}
}
