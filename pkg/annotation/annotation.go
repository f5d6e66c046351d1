// Package annotation reads BBTXT bounding-box annotation files into an
// in-memory store used by the training data loader.
//
// A BBTXT file has one box per line:
//
//	<filename> <label> <confidence> <xmin> <ymin> <xmax> <ymax>
//
// Lines for the same image must be contiguous; a new filename starts a new
// image entry. The confidence field is accepted but ignored.
package annotation

import "errors"

// DefaultCapacity is the maximum number of bounding boxes kept per image.
const DefaultCapacity = 20

// SentinelLabel marks the end of the real boxes in a fixed-capacity list.
const SentinelLabel = -1.0

// Errors reported during parsing. Wrapped errors carry the file path or the
// offending line, so use errors.Is to classify.
var (
	ErrEmptyDataset      = errors.New("annotation: dataset contains no images")
	ErrCorruptAnnotation = errors.New("annotation: corrupt line")
	ErrFileNotFound      = errors.New("annotation: file not found")
)

// BoundingBox is one annotated box in the current image or crop space.
// Coordinates are real-valued pixels; XMin <= XMax and YMin <= YMax is
// expected but not enforced by the parser.
type BoundingBox struct {
	Label float64
	XMin  float64
	YMin  float64
	XMax  float64
	YMax  float64
}

// Sentinel returns the box that terminates a per-image box list.
func Sentinel() BoundingBox {
	return BoundingBox{Label: SentinelLabel}
}

// IsSentinel reports whether b marks the end of the real boxes.
func (b BoundingBox) IsSentinel() bool {
	return b.Label == SentinelLabel
}

// Width returns XMax - XMin.
func (b BoundingBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns YMax - YMin.
func (b BoundingBox) Height() float64 {
	return b.YMax - b.YMin
}

// AnnotatedImage is one image path with its capacity-bounded box list.
// The list holds at most the parser's capacity of real boxes; when it holds
// fewer, a sentinel box follows the last real one.
type AnnotatedImage struct {
	Path  string
	Boxes []BoundingBox
}

// CountBoxes returns the number of real boxes before the first sentinel,
// or the full list length if no sentinel is present.
func CountBoxes(boxes []BoundingBox) int {
	for i, b := range boxes {
		if b.IsSentinel() {
			return i
		}
	}
	return len(boxes)
}

// NumBoxes returns the number of real boxes in the image.
func (a *AnnotatedImage) NumBoxes() int {
	return CountBoxes(a.Boxes)
}

// Store is an ordered, immutable set of annotated images built once from a
// BBTXT file. Iteration order over the store is owned by the epoch cursor.
type Store struct {
	Images []AnnotatedImage
}

// Len returns the number of images in the store.
func (s *Store) Len() int {
	return len(s.Images)
}

// TotalBoxes returns the number of real boxes across all images.
func (s *Store) TotalBoxes() int {
	n := 0
	for i := range s.Images {
		n += s.Images[i].NumBoxes()
	}
	return n
}
