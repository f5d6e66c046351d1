package batch

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/bbtxt-loader/pkg/annotation"
	"github.com/menta2k/bbtxt-loader/pkg/cursor"
	"github.com/menta2k/bbtxt-loader/pkg/normalizer"
	"github.com/menta2k/bbtxt-loader/pkg/sampler"
)

// writeTestPNG writes a uniformly colored PNG and returns its path.
func writeTestPNG(t *testing.T, dir, name string, width, height int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// buildStore parses an annotation listing whose image files exist in dir.
func buildStore(t *testing.T, listing string) *annotation.Store {
	t.Helper()
	store, err := annotation.NewParser().Parse(strings.NewReader(listing))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestAssembler(store *annotation.Store, batchSize int, seed int64) *Assembler {
	rng := rand.New(rand.NewSource(seed))
	cur := cursor.New(store.Len(), true, rng)
	smp := sampler.New(64, 64, 32, rng)
	norm := normalizer.New(64, 64)
	return NewAssembler(store, cur, smp, norm, batchSize, annotation.DefaultCapacity)
}

func TestNextBatchShapesAndSentinels(t *testing.T) {
	dir := t.TempDir()
	a := writeTestPNG(t, dir, "a.png", 200, 150, color.NRGBA{128, 128, 128, 255})
	b := writeTestPNG(t, dir, "b.png", 120, 120, color.NRGBA{128, 128, 128, 255})

	listing := fmt.Sprintf("%s 1 0.9 40 40 90 90\n%s 2 0.8 60 50 110 100\n%s 3 1.0 10 10 40 40\n", a, a, b)
	store := buildStore(t, listing)

	asm := newTestAssembler(store, 4, 21)
	batch, err := asm.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}

	if len(batch.Images) != 4*3*64*64 {
		t.Errorf("image buffer length = %d, want %d", len(batch.Images), 4*3*64*64)
	}
	if len(batch.Labels) != 4*annotation.DefaultCapacity*LabelFields {
		t.Errorf("label buffer length = %d, want %d",
			len(batch.Labels), 4*annotation.DefaultCapacity*LabelFields)
	}

	for slot := 0; slot < batch.Size; slot++ {
		boxes := batch.BoxesAt(slot)
		if len(boxes) == 0 {
			t.Errorf("slot %d: expected at least one real box", slot)
		}

		// Every row past the real boxes carries the sentinel label.
		rows := batch.LabelsAt(slot)
		for r := len(boxes); r < batch.Capacity; r++ {
			if rows[r*LabelFields] != annotation.SentinelLabel {
				t.Errorf("slot %d row %d: label = %v, want sentinel", slot, r, rows[r*LabelFields])
			}
		}
	}
}

func TestNextBatchUniformPixelsNormalizeToZero(t *testing.T) {
	// A uniform-128 image stays uniform through any pad/crop/resize, and
	// 128 maps to exactly 0 after normalization.
	dir := t.TempDir()
	a := writeTestPNG(t, dir, "a.png", 100, 100, color.NRGBA{128, 128, 128, 255})
	store := buildStore(t, fmt.Sprintf("%s 1 0.9 30 30 70 70\n", a))

	asm := newTestAssembler(store, 2, 3)
	batch, err := asm.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}

	for i, v := range batch.Images {
		if v != 0 {
			t.Fatalf("Images[%d] = %v, want 0", i, v)
		}
	}
}

func TestNextBatchDeterministicWithSeed(t *testing.T) {
	dir := t.TempDir()
	a := writeTestPNG(t, dir, "a.png", 160, 120, color.NRGBA{100, 150, 200, 255})
	b := writeTestPNG(t, dir, "b.png", 120, 160, color.NRGBA{10, 20, 30, 255})
	listing := fmt.Sprintf("%s 1 0.9 40 30 100 80\n%s 2 0.8 20 40 60 120\n", a, b)

	first := newTestAssembler(buildStore(t, listing), 4, 77)
	second := newTestAssembler(buildStore(t, listing), 4, 77)

	b1, err := first.NextBatch()
	if err != nil {
		t.Fatal(err)
	}
	b2, err := second.NextBatch()
	if err != nil {
		t.Fatal(err)
	}

	for i := range b1.Labels {
		if b1.Labels[i] != b2.Labels[i] {
			t.Fatalf("label buffers diverge at %d: %v vs %v", i, b1.Labels[i], b2.Labels[i])
		}
	}
	for i := range b1.Images {
		if b1.Images[i] != b2.Images[i] {
			t.Fatalf("image buffers diverge at %d", i)
		}
	}
}

func TestNextBatchMissingImageFails(t *testing.T) {
	parser := annotation.NewParser()
	parser.SetFileCheck(false)
	store, err := parser.Parse(strings.NewReader("gone.png 1 0.9 10 10 50 50"))
	if err != nil {
		t.Fatal(err)
	}

	asm := newTestAssembler(store, 1, 1)
	_, err = asm.NextBatch()
	if err == nil {
		t.Fatal("expected an error for a missing image")
	}
	if !strings.Contains(err.Error(), "gone.png") {
		t.Errorf("error should carry the image path, got: %v", err)
	}
}

func TestNextBatchDebugDump(t *testing.T) {
	dir := t.TempDir()
	a := writeTestPNG(t, dir, "a.png", 100, 100, color.NRGBA{128, 128, 128, 255})
	store := buildStore(t, fmt.Sprintf("%s 1 0.9 30 30 70 70\n", a))

	dumpDir := t.TempDir()
	asm := newTestAssembler(store, 2, 5)
	asm.SetDebug(DebugOptions{Dir: dumpDir, Format: "png"})

	if _, err := asm.NextBatch(); err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		name := filepath.Join(dumpDir, fmt.Sprintf("sample%06d.png", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected debug dump %s: %v", name, err)
		}
	}
}
