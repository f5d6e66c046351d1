package processing

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/bbtxt-loader/pkg/annotation"
)

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")

	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := NewProcessor().LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 10 {
		t.Errorf("unexpected dimensions %v", img.Bounds())
	}
}

func TestLoadImageCorruptBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewProcessor().LoadImage(path)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("error should carry the path, got: %v", err)
	}
}

func TestDrawBoxesStopsAtSentinel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	boxes := []annotation.BoundingBox{
		{Label: 1, XMin: 10, YMin: 10, XMax: 40, YMax: 40},
		annotation.Sentinel(),
		{Label: 9, XMin: 60, YMin: 60, XMax: 90, YMax: 90},
	}

	out := NewProcessor().DrawBoxes(img, boxes)

	red := color.NRGBA{255, 0, 0, 255}
	if out.NRGBAAt(10, 10) != red {
		t.Error("real box outline missing")
	}
	if out.NRGBAAt(60, 60) == red {
		t.Error("box past the sentinel must not be drawn")
	}
}
