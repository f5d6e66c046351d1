// Package sampler chooses crop windows for detection training samples.
//
// A crop is anchored on one randomly selected bounding box and sized so that
// after resizing to the network input the box's larger dimension lands on the
// configured reference size. The window may extend outside the image; the
// plan then carries the border amounts needed to realize it by replicating
// edge pixels.
package sampler

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/menta2k/bbtxt-loader/pkg/annotation"
)

// Padding holds per-side border amounts, in pixels, required to realize a
// crop window that extends outside the source image.
type Padding struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// None reports whether no padding is required.
func (p Padding) None() bool {
	return p == Padding{}
}

// CropPlan describes one crop window in original-image pixel coordinates.
// X and Y may be negative and X+Width / Y+Height may exceed the image when
// padding is required. WholeImage marks the box-less case where the full
// image is resized with no coordinate shift.
type CropPlan struct {
	X          int
	Y          int
	Width      int
	Height     int
	Pad        Padding
	WholeImage bool
}

// PaddedOrigin returns the crop origin translated into the coordinates of
// the padded image.
func (p CropPlan) PaddedOrigin() (x, y int) {
	return p.X + p.Pad.Left, p.Y + p.Pad.Top
}

// CropSampler computes crop plans for a fixed network input size and
// reference box scale.
type CropSampler struct {
	targetWidth   int
	targetHeight  int
	referenceSize float64
	rng           *rand.Rand
}

// New creates a sampler producing crops for a targetWidth x targetHeight
// network input. referenceSize is the pixel size the selected box's larger
// dimension should have after the crop is resized to the target. rng is the
// worker's seeded random stream.
func New(targetWidth, targetHeight int, referenceSize float64, rng *rand.Rand) *CropSampler {
	return &CropSampler{
		targetWidth:   targetWidth,
		targetHeight:  targetHeight,
		referenceSize: referenceSize,
		rng:           rng,
	}
}

// Sample selects a reference box from boxes and computes a crop plan fully
// containing it. An image with no real boxes yields a whole-image plan.
//
// The crop origin is drawn uniformly from the positions that keep the
// selected box inside the window. When the box is larger than the window
// (possible when the box's smaller dimension exceeds the reference scale of
// the corresponding target dimension) the position range collapses and the
// crop is pinned to the box origin.
func (s *CropSampler) Sample(imgWidth, imgHeight int, boxes []annotation.BoundingBox) CropPlan {
	n := annotation.CountBoxes(boxes)
	if n == 0 {
		return CropPlan{
			Width:      imgWidth,
			Height:     imgHeight,
			WholeImage: true,
		}
	}
	if n > len(boxes) {
		panic(fmt.Sprintf("sampler: box count %d exceeds list length %d", n, len(boxes)))
	}

	box := boxes[s.rng.Intn(n)]
	x, y := box.XMin, box.YMin
	w, h := box.Width(), box.Height()

	size := math.Max(w, h)
	cropWidth := scaledCropDim(s.targetWidth, s.referenceSize, size)
	cropHeight := scaledCropDim(s.targetHeight, s.referenceSize, size)

	cropX := s.uniformInt(int(x+w)-cropWidth, int(x))
	cropY := s.uniformInt(int(y+h)-cropHeight, int(y))

	var pad Padding
	if cropX < 0 {
		pad.Left = -cropX
	}
	if cropY < 0 {
		pad.Top = -cropY
	}
	if over := cropX + cropWidth - imgWidth; over > 0 {
		pad.Right = over
	}
	if over := cropY + cropHeight - imgHeight; over > 0 {
		pad.Bottom = over
	}

	return CropPlan{
		X:      cropX,
		Y:      cropY,
		Width:  cropWidth,
		Height: cropHeight,
		Pad:    pad,
	}
}

// scaledCropDim returns the crop dimension that maps a box of the given size
// onto referenceSize pixels once resized to the target dimension.
func scaledCropDim(target int, referenceSize, size float64) int {
	d := int(math.Round(float64(target) / referenceSize * size))
	if d < 1 {
		d = 1
	}
	return d
}

// uniformInt draws uniformly from the closed range [lo, hi]. An inverted
// range collapses to its upper bound, pinning the crop to the box origin.
func (s *CropSampler) uniformInt(lo, hi int) int {
	if hi < lo {
		return hi
	}
	return lo + s.rng.Intn(hi-lo+1)
}
