package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/image/draw"
)

// RasterBudget bounds how large rendered pages may grow. OCR quality
// stops improving past ~300 DPI while memory and runtime keep climbing,
// so the render DPI is picked per page to stay under MaxPixels.
type RasterBudget struct {
	MaxPixels  int64
	MaxDPI     int
	DefaultDPI int
}

// minDPI is the floor below which OCR output becomes useless.
const minDPI = 72

// DPIFor picks the highest DPI that keeps width*height under MaxPixels,
// capped at MaxDPI. Unknown page sizes get DefaultDPI.
func (b RasterBudget) DPIFor(widthIn, heightIn float64) int {
	if widthIn <= 0 || heightIn <= 0 {
		return b.DefaultDPI
	}
	dpi := int(math.Sqrt(float64(b.MaxPixels) / (widthIn * heightIn)))
	if dpi > b.MaxDPI {
		dpi = b.MaxDPI
	}
	if dpi < minDPI {
		dpi = minDPI
	}
	return dpi
}

// Rasterizer renders PDF pages to images with pdftoppm (poppler-utils).
type Rasterizer struct {
	Budget RasterBudget
}

// Available reports whether pdftoppm is on PATH. Without it scanned
// pages cannot be processed at all.
func (r *Rasterizer) Available() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// pageSizePattern matches pdfinfo output like
// "Page size:      612 x 792 pts (letter)".
var pageSizePattern = regexp.MustCompile(`Page size:\s+([\d.]+) x ([\d.]+) pts`)

// pageSizeInches reads the page dimensions via pdfinfo. Best effort: a
// missing tool or unparseable output just means the default DPI is used.
func pageSizeInches(ctx context.Context, path string) (widthIn, heightIn float64, ok bool) {
	if _, err := exec.LookPath("pdfinfo"); err != nil {
		return 0, 0, false
	}
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0, 0, false
	}
	m := pageSizePattern.FindSubmatch(out)
	if m == nil {
		return 0, 0, false
	}
	wPts, err1 := strconv.ParseFloat(string(m[1]), 64)
	hPts, err2 := strconv.ParseFloat(string(m[2]), 64)
	if err1 != nil || err2 != nil || wPts <= 0 || hPts <= 0 {
		return 0, 0, false
	}
	return wPts / 72, hPts / 72, true
}

// Render rasterizes a single page (1-based) to an image, within budget.
func (r *Rasterizer) Render(ctx context.Context, path string, page int) (image.Image, error) {
	if !r.Available() {
		return nil, errors.New("pdftoppm not available, install poppler-utils")
	}

	dpi := r.Budget.DefaultDPI
	if w, h, ok := pageSizeInches(ctx, path); ok {
		dpi = r.Budget.DPIFor(w, h)
	}

	tmpDir, err := os.MkdirTemp("", "statement-raster")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPrefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-r", strconv.Itoa(dpi),
		"-f", pageArg, "-l", pageArg,
		"-png", path, imgPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	images, err := filepath.Glob(imgPrefix + "*.png")
	if err != nil || len(images) == 0 {
		return nil, errors.New("pdftoppm produced no image")
	}

	f, err := os.Open(images[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return r.capPixels(img), nil
}

// capPixels downscales the image when it still exceeds the budget, which
// happens when the page size was unknown up front. Catmull-Rom keeps
// glyph edges clean enough for OCR.
func (r *Rasterizer) capPixels(img image.Image) image.Image {
	bounds := img.Bounds()
	px := int64(bounds.Dx()) * int64(bounds.Dy())
	if px <= r.Budget.MaxPixels {
		return img
	}
	scale := math.Sqrt(float64(r.Budget.MaxPixels) / float64(px))
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 || h < 1 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
