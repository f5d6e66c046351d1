// Package bbtxtloader provides data loading and augmentation for supervised
// object-detection training on BBTXT-annotated datasets.
//
// A BBTXT annotation file lists one bounding box per line:
//
//	<filename> <label> <confidence> <xmin> <ymin> <xmax> <ymax>
//
// For every training sample the loader picks the next image in epoch order,
// selects one of its boxes at random, crops a window around it sized so the
// box lands on a configured reference scale after resizing to the network
// input, and emits a normalized planar pixel buffer together with all box
// coordinates re-projected into the crop.
//
// Basic usage:
//
//	cfg := bbtxtloader.DefaultConfig()
//	cfg.Source = "train.bbtxt"
//	cfg.Width, cfg.Height = 224, 224
//	cfg.ReferenceSize = 50
//	cfg.Seed = 42
//
//	loader, err := bbtxtloader.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	b, err := loader.NextBatch()
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = b.ImageAt(0)  // 3*Height*Width floats, channel-major
//	_ = b.LabelsAt(0) // Capacity rows of [label, xmin, ymin, xmax, ymax]
//
// The package consists of five pipeline stages:
//
// 1. Annotation (pkg/annotation): BBTXT parsing into a per-image box store
// 2. Cursor (pkg/cursor): epoch iteration with optional reshuffling
// 3. Sampler (pkg/sampler): reference-box selection and crop-window planning
// 4. Normalizer (pkg/normalizer): pad/crop/resize, pixel scaling, box transform
// 5. Batch (pkg/batch): assembly into fixed-shape batch buffers
//
// One Loader serves one worker goroutine. Workers sharing a dataset should
// each construct their own Loader (with distinct seeds); the cursor and
// random stream are deliberately unsynchronized.
package bbtxtloader

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/menta2k/bbtxt-loader/internal/utils"
	"github.com/menta2k/bbtxt-loader/pkg/annotation"
	"github.com/menta2k/bbtxt-loader/pkg/batch"
	"github.com/menta2k/bbtxt-loader/pkg/cursor"
	"github.com/menta2k/bbtxt-loader/pkg/normalizer"
	"github.com/menta2k/bbtxt-loader/pkg/sampler"
)

// Version of the bbtxt loader library
const Version = "1.0.0"

// Config holds the loader settings. Source, Width, Height and ReferenceSize
// are required.
type Config struct {
	// Source is the path to the BBTXT annotation file.
	Source string
	// Width and Height are the network input spatial size.
	Width  int
	Height int
	// ReferenceSize is the pixel size the selected box's larger dimension is
	// normalized to after crop and resize.
	ReferenceSize float64
	BatchSize     int
	Shuffle       bool
	// MaxBoxesPerImage bounds the per-image box list and the label buffer.
	MaxBoxesPerImage int
	// Seed initialises the worker's random stream; zero seeds from the clock.
	Seed  int64
	Debug batch.DebugOptions
}

// DefaultConfig returns a Config with default values for the optional
// fields.
func DefaultConfig() Config {
	return Config{
		BatchSize:        32,
		Shuffle:          true,
		MaxBoxesPerImage: annotation.DefaultCapacity,
	}
}

// Loader is the per-worker data-loading pipeline.
type Loader struct {
	config    Config
	store     *annotation.Store
	assembler *batch.Assembler
}

// New parses the annotation source and builds the pipeline. With shuffling
// enabled the first epoch already runs in a random order.
func New(cfg Config) (*Loader, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("bbtxtloader: source must be set")
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("bbtxtloader: width and height must be set")
	}
	if cfg.ReferenceSize <= 0 {
		return nil, fmt.Errorf("bbtxtloader: reference_size must be set")
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("bbtxtloader: batch_size must be positive")
	}
	if cfg.MaxBoxesPerImage < 1 {
		cfg.MaxBoxesPerImage = annotation.DefaultCapacity
	}

	parser := annotation.NewParserWithCapacity(cfg.MaxBoxesPerImage)
	store, err := parser.ParseFile(cfg.Source)
	if err != nil {
		return nil, err
	}
	log.Printf("bbtxtloader: %d images, %d boxes in the dataset", store.Len(), store.TotalBoxes())

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	cur := cursor.New(store.Len(), cfg.Shuffle, rng)
	smp := sampler.New(cfg.Width, cfg.Height, cfg.ReferenceSize, rng)
	norm := normalizer.New(cfg.Width, cfg.Height)

	asm := batch.NewAssembler(store, cur, smp, norm, cfg.BatchSize, cfg.MaxBoxesPerImage)
	if cfg.Debug.Dir != "" {
		if err := utils.EnsureDir(cfg.Debug.Dir); err != nil {
			return nil, fmt.Errorf("bbtxtloader: debug dir: %w", err)
		}
		asm.SetDebug(cfg.Debug)
	}

	return &Loader{
		config:    cfg,
		store:     store,
		assembler: asm,
	}, nil
}

// NextBatch assembles and returns the next batch of augmented samples.
func (l *Loader) NextBatch() (*batch.Batch, error) {
	return l.assembler.NextBatch()
}

// Len returns the number of images in the dataset.
func (l *Loader) Len() int {
	return l.store.Len()
}

// Store exposes the parsed annotations, for inspection tools. The returned
// store must be treated as read-only.
func (l *Loader) Store() *annotation.Store {
	return l.store
}
