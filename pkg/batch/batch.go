// Package batch assembles augmented training samples into fixed-shape
// image and label buffers.
package batch

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/bbtxt-loader/pkg/annotation"
	"github.com/menta2k/bbtxt-loader/pkg/cursor"
	"github.com/menta2k/bbtxt-loader/pkg/normalizer"
	"github.com/menta2k/bbtxt-loader/pkg/processing"
	"github.com/menta2k/bbtxt-loader/pkg/sampler"
)

// LabelFields is the number of values per label row:
// [label, xmin, ymin, xmax, ymax].
const LabelFields = 5

// Batch holds one assembled batch. Images is laid out
// (Size, 3, Height, Width) and Labels (Size, Capacity, LabelFields), both
// flattened row-major. Label rows past the real boxes of a sample carry the
// sentinel label -1.
type Batch struct {
	Size     int
	Height   int
	Width    int
	Capacity int
	Images   []float32
	Labels   []float32
}

// ImageAt returns the planar pixel buffer of slot i.
func (b *Batch) ImageAt(i int) []float32 {
	n := normalizer.Channels * b.Height * b.Width
	return b.Images[i*n : (i+1)*n]
}

// LabelsAt returns the label rows of slot i.
func (b *Batch) LabelsAt(i int) []float32 {
	n := b.Capacity * LabelFields
	return b.Labels[i*n : (i+1)*n]
}

// BoxesAt decodes the real boxes of slot i from the label buffer.
func (b *Batch) BoxesAt(i int) []annotation.BoundingBox {
	rows := b.LabelsAt(i)
	var boxes []annotation.BoundingBox
	for r := 0; r < b.Capacity; r++ {
		row := rows[r*LabelFields:]
		if row[0] == annotation.SentinelLabel {
			break
		}
		boxes = append(boxes, annotation.BoundingBox{
			Label: float64(row[0]),
			XMin:  float64(row[1]),
			YMin:  float64(row[2]),
			XMax:  float64(row[3]),
			YMax:  float64(row[4]),
		})
	}
	return boxes
}

// DebugOptions controls the optional dumping of augmented samples to disk.
// A zero value disables dumping.
type DebugOptions struct {
	Dir     string
	Format  string // png, jpg or webp; png when empty
	Quality int
}

func (d DebugOptions) enabled() bool {
	return d.Dir != ""
}

// Assembler pulls annotated images from an epoch cursor and produces
// batches. One assembler serves one worker; it owns its cursor and must not
// be shared across goroutines.
type Assembler struct {
	store      *annotation.Store
	cursor     *cursor.EpochCursor
	sampler    *sampler.CropSampler
	normalizer *normalizer.SampleNormalizer
	processor  *processing.Processor
	batchSize  int
	capacity   int
	debug      DebugOptions
	debugIndex int
}

// NewAssembler wires the pipeline stages together. capacity is the label
// buffer's box capacity per image and must match the parser's.
func NewAssembler(store *annotation.Store, cur *cursor.EpochCursor, smp *sampler.CropSampler,
	norm *normalizer.SampleNormalizer, batchSize, capacity int) *Assembler {
	return &Assembler{
		store:      store,
		cursor:     cur,
		sampler:    smp,
		normalizer: norm,
		processor:  processing.NewProcessor(),
		batchSize:  batchSize,
		capacity:   capacity,
	}
}

// SetDebug enables dumping of each augmented sample with its boxes drawn on
// it, indexed per assembler instance.
func (a *Assembler) SetDebug(opts DebugOptions) {
	a.debug = opts
}

// NextBatch produces the next batch of augmented samples. Any image that
// cannot be read or decoded aborts the batch with the path in the error;
// a missing or corrupt image means a broken dataset, not a transient
// condition, so there is no skip-and-continue.
func (a *Assembler) NextBatch() (*Batch, error) {
	height := a.normalizer.TargetHeight()
	width := a.normalizer.TargetWidth()
	b := &Batch{
		Size:     a.batchSize,
		Height:   height,
		Width:    width,
		Capacity: a.capacity,
		Images:   make([]float32, a.batchSize*normalizer.Channels*height*width),
		Labels:   make([]float32, a.batchSize*a.capacity*LabelFields),
	}

	for slot := 0; slot < a.batchSize; slot++ {
		entry := &a.store.Images[a.cursor.Next()]

		img, err := a.processor.LoadImage(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("batch slot %d: %w", slot, err)
		}
		bounds := img.Bounds()

		plan := a.sampler.Sample(bounds.Dx(), bounds.Dy(), entry.Boxes)

		realized, err := a.normalizer.Realize(img, plan)
		if err != nil {
			return nil, fmt.Errorf("batch slot %d (%s): %w", slot, entry.Path, err)
		}
		boxes := a.normalizer.TransformBoxes(entry.Boxes, plan)

		copy(b.ImageAt(slot), a.normalizer.Normalize(realized))
		a.writeLabels(b.LabelsAt(slot), boxes)

		if a.debug.enabled() {
			if err := a.dumpSample(realized, boxes); err != nil {
				return nil, fmt.Errorf("debug dump for %s: %w", entry.Path, err)
			}
		}
	}
	return b, nil
}

// writeLabels fills one slot's label rows. Real boxes come first; every
// remaining row gets the sentinel label so consumers can stop at the first
// -1 regardless of the image's box count.
func (a *Assembler) writeLabels(dst []float32, boxes []annotation.BoundingBox) {
	count := annotation.CountBoxes(boxes)
	for r := 0; r < a.capacity; r++ {
		row := dst[r*LabelFields:]
		if r < count {
			row[0] = float32(boxes[r].Label)
			row[1] = float32(boxes[r].XMin)
			row[2] = float32(boxes[r].YMin)
			row[3] = float32(boxes[r].XMax)
			row[4] = float32(boxes[r].YMax)
		} else {
			row[0] = annotation.SentinelLabel
			row[1], row[2], row[3], row[4] = 0, 0, 0, 0
		}
	}
}

func (a *Assembler) dumpSample(img *image.NRGBA, boxes []annotation.BoundingBox) error {
	format := a.debug.Format
	if format == "" {
		format = "png"
	}
	quality := a.debug.Quality
	if quality == 0 {
		quality = 90
	}
	overlay := a.processor.DrawBoxes(img, boxes)
	name := filepath.Join(a.debug.Dir, fmt.Sprintf("sample%06d.%s", a.debugIndex, format))
	a.debugIndex++
	return a.processor.SaveImage(overlay, name, format, quality, false)
}
