// Package normalizer turns a crop plan into network-ready sample data: a
// fixed-size planar float pixel buffer and the image's boxes re-projected
// into the crop space.
package normalizer

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/bbtxt-loader/pkg/annotation"
	"github.com/menta2k/bbtxt-loader/pkg/sampler"
)

// Channels is the number of color channels fed to the network.
const Channels = 3

// ErrShape is returned when a realized crop does not match the expected
// network input dimensions.
var ErrShape = errors.New("normalizer: output shape mismatch")

// SampleNormalizer realizes crop plans at a fixed network input size.
type SampleNormalizer struct {
	targetWidth  int
	targetHeight int
}

// New creates a normalizer for a targetWidth x targetHeight network input.
func New(targetWidth, targetHeight int) *SampleNormalizer {
	return &SampleNormalizer{
		targetWidth:  targetWidth,
		targetHeight: targetHeight,
	}
}

// TargetWidth returns the network input width.
func (n *SampleNormalizer) TargetWidth() int {
	return n.targetWidth
}

// TargetHeight returns the network input height.
func (n *SampleNormalizer) TargetHeight() int {
	return n.targetHeight
}

// PixelCount returns the length of the pixel buffer produced per sample.
func (n *SampleNormalizer) PixelCount() int {
	return Channels * n.targetWidth * n.targetHeight
}

// Apply realizes the crop plan on img, resizes the result to the target
// dimensions with bilinear interpolation, and returns the normalized planar
// pixel buffer together with a transformed copy of boxes.
//
// Pixels are laid out channel-major (all R, then G, then B), each channel
// row-major, with every 0..255 value mapped to (v-128)/128. Box coordinates
// are shifted by the crop origin and scaled into output pixel space; boxes
// at and past the first sentinel are copied through untouched.
func (n *SampleNormalizer) Apply(img image.Image, plan sampler.CropPlan, boxes []annotation.BoundingBox) ([]float32, []annotation.BoundingBox, error) {
	realized, err := n.Realize(img, plan)
	if err != nil {
		return nil, nil, err
	}
	return n.Normalize(realized), n.TransformBoxes(boxes, plan), nil
}

// Realize extracts the plan's window from img, replicating edge pixels where
// the window leaves the image, and resizes it to the target dimensions with
// bilinear interpolation. The result is rejected if it does not match the
// expected network input shape exactly.
func (n *SampleNormalizer) Realize(img image.Image, plan sampler.CropPlan) (*image.NRGBA, error) {
	if plan.Width < 1 || plan.Height < 1 {
		return nil, fmt.Errorf("%w: empty crop %dx%d", ErrShape, plan.Width, plan.Height)
	}

	cropped := realizeCrop(img, plan)
	if cropped.Bounds().Dx() != n.targetWidth || cropped.Bounds().Dy() != n.targetHeight {
		cropped = imaging.Resize(cropped, n.targetWidth, n.targetHeight, imaging.Linear)
	}
	if cropped.Bounds().Dx() != n.targetWidth || cropped.Bounds().Dy() != n.targetHeight {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShape,
			cropped.Bounds().Dx(), cropped.Bounds().Dy(), n.targetWidth, n.targetHeight)
	}
	return cropped, nil
}

// TransformBoxes re-projects every real box into the output pixel space of
// the plan: subtract the crop origin, then scale by target/crop per axis.
// The input slice is not modified. The whole-image plan degenerates to the
// same formula with origin (0,0) and the image dimensions as crop size.
func (n *SampleNormalizer) TransformBoxes(boxes []annotation.BoundingBox, plan sampler.CropPlan) []annotation.BoundingBox {
	out := make([]annotation.BoundingBox, len(boxes))
	copy(out, boxes)

	xScale := float64(n.targetWidth) / float64(plan.Width)
	yScale := float64(n.targetHeight) / float64(plan.Height)

	count := annotation.CountBoxes(out)
	for i := 0; i < count; i++ {
		b := &out[i]
		b.XMin = (b.XMin - float64(plan.X)) * xScale
		b.XMax = (b.XMax - float64(plan.X)) * xScale
		b.YMin = (b.YMin - float64(plan.Y)) * yScale
		b.YMax = (b.YMax - float64(plan.Y)) * yScale
	}
	return out
}

// realizeCrop extracts the plan's window from img. Windows fully inside the
// image use a plain crop; windows that extend past any edge are filled by
// replicating the nearest edge pixel, so no artificial dark border enters
// the training data.
func realizeCrop(img image.Image, plan sampler.CropPlan) *image.NRGBA {
	if plan.Pad.None() {
		rect := image.Rect(plan.X, plan.Y, plan.X+plan.Width, plan.Y+plan.Height)
		return imaging.Crop(img, rect)
	}

	src := imaging.Clone(img)
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, plan.Width, plan.Height))

	for dy := 0; dy < plan.Height; dy++ {
		sy := clampInt(plan.Y+dy, 0, h-1)
		srcRow := src.Pix[sy*src.Stride:]
		dstRow := dst.Pix[dy*dst.Stride:]
		for dx := 0; dx < plan.Width; dx++ {
			sx := clampInt(plan.X+dx, 0, w-1)
			copy(dstRow[dx*4:dx*4+4], srcRow[sx*4:sx*4+4])
		}
	}
	return dst
}

// Normalize converts interleaved NRGBA bytes to the planar channel-major
// float layout with zero-mean unit-variance scaling. img must already have
// the target dimensions.
func (n *SampleNormalizer) Normalize(img *image.NRGBA) []float32 {
	out := make([]float32, n.PixelCount())
	plane := n.targetWidth * n.targetHeight

	for y := 0; y < n.targetHeight; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < n.targetWidth; x++ {
			i := y*n.targetWidth + x
			for c := 0; c < Channels; c++ {
				v := row[x*4+c]
				out[c*plane+i] = (float32(v) - 128) / 128
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
