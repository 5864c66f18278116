package extractor

import (
	"image"
	"os/exec"
	"testing"
)

func TestDPIFor(t *testing.T) {
	budget := RasterBudget{MaxPixels: 40_000_000, MaxDPI: 300, DefaultDPI: 300}

	tests := []struct {
		name     string
		w, h     float64
		wantDPI  int
	}{
		{"letter page caps at MaxDPI", 8.5, 11, 300},
		{"unknown size uses default", 0, 0, 300},
		{"negative size uses default", -1, 11, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := budget.DPIFor(tt.w, tt.h); got != tt.wantDPI {
				t.Errorf("DPIFor(%v, %v) = %d, want %d", tt.w, tt.h, got, tt.wantDPI)
			}
		})
	}

	tight := RasterBudget{MaxPixels: 1_000_000, MaxDPI: 300, DefaultDPI: 300}
	got := tight.DPIFor(8.5, 11)
	if got < 72 || got >= 300 {
		t.Errorf("DPIFor under a tight budget = %d, want scaled below 300", got)
	}
	if px := int64(float64(got) * 8.5 * float64(got) * 11); px > tight.MaxPixels {
		t.Errorf("chosen DPI %d renders %d pixels, over budget %d", got, px, tight.MaxPixels)
	}

	tiny := RasterBudget{MaxPixels: 1000, MaxDPI: 300, DefaultDPI: 300}
	if got := tiny.DPIFor(8.5, 11); got != 72 {
		t.Errorf("DPIFor floors at 72, got %d", got)
	}
}

func TestCapPixels(t *testing.T) {
	r := &Rasterizer{Budget: RasterBudget{MaxPixels: 10_000, MaxDPI: 300, DefaultDPI: 300}}

	small := image.NewRGBA(image.Rect(0, 0, 50, 50))
	if got := r.capPixels(small); got != small {
		t.Error("capPixels resized an image already under budget")
	}

	big := image.NewRGBA(image.Rect(0, 0, 200, 200))
	scaled := r.capPixels(big)
	b := scaled.Bounds()
	if px := int64(b.Dx()) * int64(b.Dy()); px > 10_000 {
		t.Errorf("capPixels left %d pixels, want <= 10000", px)
	}
	if b.Dx() != b.Dy() {
		t.Errorf("capPixels changed aspect ratio: %dx%d", b.Dx(), b.Dy())
	}
}

func TestPageSizePattern(t *testing.T) {
	out := []byte("Title:          Statement\nPages:          3\nPage size:      612 x 792 pts (letter)\n")
	m := pageSizePattern.FindSubmatch(out)
	if m == nil {
		t.Fatal("pageSizePattern did not match pdfinfo output")
	}
	if string(m[1]) != "612" || string(m[2]) != "792" {
		t.Errorf("matched %q x %q, want 612 x 792", m[1], m[2])
	}
}

func TestAvailableMatchesPath(t *testing.T) {
	r := &Rasterizer{}
	_, err := exec.LookPath("pdftoppm")
	if got, want := r.Available(), err == nil; got != want {
		t.Errorf("Available() = %v, but LookPath error = %v", got, err)
	}
}
