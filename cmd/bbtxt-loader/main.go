package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	bbtxtloader "github.com/menta2k/bbtxt-loader"
	"github.com/menta2k/bbtxt-loader/internal/config"
	"github.com/menta2k/bbtxt-loader/internal/utils"
	"github.com/menta2k/bbtxt-loader/pkg/annotation"
	"github.com/menta2k/bbtxt-loader/pkg/batch"
)

func main() {
	var cfgPath, source, debugDir, debugExt string
	var width, height, batchSize, maxBoxes, batches, debugQuality int
	var refSize float64
	var seed int64
	var shuffle, stats bool

	flag.StringVar(&cfgPath, "config", "", "JSON config file (flags override it)")
	flag.StringVar(&source, "source", "", "BBTXT annotation file")
	flag.IntVar(&width, "width", 0, "network input width")
	flag.IntVar(&height, "height", 0, "network input height")
	flag.Float64Var(&refSize, "ref", 0, "reference box size in output pixels")
	flag.IntVar(&batchSize, "batch", 32, "batch size")
	flag.IntVar(&maxBoxes, "maxboxes", annotation.DefaultCapacity, "max boxes kept per image")
	flag.BoolVar(&shuffle, "shuffle", true, "reshuffle the dataset every epoch")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = from clock)")

	flag.BoolVar(&stats, "stats", false, "print dataset statistics and exit")
	flag.IntVar(&batches, "batches", 1, "number of batches to assemble")

	flag.StringVar(&debugDir, "debug", "", "dump augmented samples with boxes drawn into this directory")
	flag.StringVar(&debugExt, "dbgext", "png", "debug dump format: png|jpg|webp")
	flag.IntVar(&debugQuality, "dbgquality", 92, "debug dump quality (for jpg/webp)")

	flag.Parse()

	cfg := bbtxtloader.DefaultConfig()
	if cfgPath != "" {
		fileCfg, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := fileCfg.Validate(); err != nil {
			log.Fatalf("invalid config %s: %v", cfgPath, err)
		}
		cfg = fromFileConfig(fileCfg)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if source != "" {
		cfg.Source = source
	}
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if refSize > 0 {
		cfg.ReferenceSize = refSize
	}
	if set["batch"] {
		cfg.BatchSize = batchSize
	}
	if set["maxboxes"] {
		cfg.MaxBoxesPerImage = maxBoxes
	}
	if set["shuffle"] {
		cfg.Shuffle = shuffle
	}
	if set["seed"] {
		cfg.Seed = seed
	}
	if debugDir != "" {
		cfg.Debug = batch.DebugOptions{Dir: debugDir, Format: debugExt, Quality: debugQuality}
	}

	if cfg.Source == "" {
		log.Fatalf("usage: %s -source train.bbtxt -width W -height H -ref SIZE [-stats] [-batches N] [-debug outdir]",
			filepath.Base(os.Args[0]))
	}

	if stats {
		printStats(cfg)
		return
	}

	loader, err := bbtxtloader.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	for i := 0; i < batches; i++ {
		b, err := loader.NextBatch()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("batch %d: %d samples of 3x%dx%d, labels %dx%d",
			i, b.Size, b.Height, b.Width, b.Capacity, batch.LabelFields)
	}
}

func fromFileConfig(fc *config.Config) bbtxtloader.Config {
	return bbtxtloader.Config{
		Source:           fc.Source,
		Width:            fc.Width,
		Height:           fc.Height,
		ReferenceSize:    fc.ReferenceSize,
		BatchSize:        fc.BatchSize,
		Shuffle:          fc.Shuffle,
		MaxBoxesPerImage: fc.MaxBoxesPerImage,
		Seed:             fc.Seed,
		Debug: batch.DebugOptions{
			Dir:     fc.Debug.Dir,
			Format:  fc.Debug.Format,
			Quality: fc.Debug.Quality,
		},
	}
}

// printStats parses the annotation file and prints a dataset summary:
// image and box counts, boxes-per-image histogram and label distribution.
func printStats(cfg bbtxtloader.Config) {
	parser := annotation.NewParserWithCapacity(cfg.MaxBoxesPerImage)
	store, err := parser.ParseFile(cfg.Source)
	if err != nil {
		log.Fatal(err)
	}

	histogram := map[int]int{}
	labels := map[float64]int{}
	nonImage := 0
	for i := range store.Images {
		img := &store.Images[i]
		n := img.NumBoxes()
		histogram[n]++
		for _, b := range img.Boxes[:n] {
			labels[b.Label]++
		}
		if !utils.IsImageFile(img.Path) {
			nonImage++
		}
	}

	fmt.Printf("images: %d\n", store.Len())
	fmt.Printf("boxes:  %d\n", store.TotalBoxes())
	if nonImage > 0 {
		fmt.Printf("warning: %d entries without a known image extension\n", nonImage)
	}

	fmt.Println("boxes per image:")
	for _, n := range sortedIntKeys(histogram) {
		fmt.Printf("  %2d boxes: %d images\n", n, histogram[n])
	}

	fmt.Println("label distribution:")
	for _, l := range sortedFloatKeys(labels) {
		fmt.Printf("  label %g: %d boxes\n", l, labels[l])
	}
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedFloatKeys(m map[float64]int) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}
