package annotation

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/menta2k/bbtxt-loader/internal/utils"
)

// Parser reads BBTXT annotation files. The capacity bounds the number of
// boxes kept per image; excess boxes are dropped with a warning.
type Parser struct {
	capacity  int
	checkFile bool
}

// NewParser creates a parser with the default per-image box capacity.
func NewParser() *Parser {
	return NewParserWithCapacity(DefaultCapacity)
}

// NewParserWithCapacity creates a parser with a custom per-image box capacity.
func NewParserWithCapacity(capacity int) *Parser {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Parser{capacity: capacity, checkFile: true}
}

// SetFileCheck controls whether referenced image files must exist on disk.
// Enabled by default; tests that parse synthetic listings can switch it off.
func (p *Parser) SetFileCheck(enabled bool) {
	p.checkFile = enabled
}

// ParseFile reads and parses the BBTXT file at path.
func (p *Parser) ParseFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("annotation file %q: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to open annotation file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads BBTXT lines from r and groups them into annotated images.
// Grouping is by contiguous runs of identical filenames only; the same
// filename appearing in two non-adjacent runs produces two entries.
func (p *Parser) Parse(r io.Reader) (*Store, error) {
	store := &Store{}

	var current *AnnotatedImage
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, fmt.Errorf("%w: line %d %q", ErrCorruptAnnotation, lineNum, line)
		}

		filename := fields[0]
		if current == nil || current.Path != filename {
			// New image: seal the previous group before starting this one.
			if current != nil {
				p.finalize(current)
			}

			if p.checkFile && !utils.FileExists(filename) {
				return nil, fmt.Errorf("image file %q (line %d): %w", filename, lineNum, ErrFileNotFound)
			}

			store.Images = append(store.Images, AnnotatedImage{
				Path:  filename,
				Boxes: make([]BoundingBox, 0, p.capacity),
			})
			current = &store.Images[len(store.Images)-1]
		}

		if len(current.Boxes) >= p.capacity {
			log.Printf("annotation: skipping box on line %d: image %q already has %d boxes",
				lineNum, filename, p.capacity)
			continue
		}

		box, err := parseBox(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d %q: %v", ErrCorruptAnnotation, lineNum, line, err)
		}
		current.Boxes = append(current.Boxes, box)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotation source: %w", err)
	}

	// The last group ends at EOF, not at a filename change.
	if current != nil {
		p.finalize(current)
	}

	if len(store.Images) == 0 {
		return nil, ErrEmptyDataset
	}
	return store, nil
}

// finalize appends the end-of-boxes sentinel when the image has fewer real
// boxes than the capacity.
func (p *Parser) finalize(img *AnnotatedImage) {
	if len(img.Boxes) < p.capacity {
		img.Boxes = append(img.Boxes, Sentinel())
	}
}

// parseBox builds a box from the 7 fields of one BBTXT line. The label is
// parsed as a float so box-less images can be encoded with a -1 label line.
// The confidence field (index 2) is ignored.
func parseBox(fields []string) (BoundingBox, error) {
	var box BoundingBox
	var err error

	if box.Label, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return box, fmt.Errorf("bad label %q", fields[1])
	}
	if box.XMin, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return box, fmt.Errorf("bad xmin %q", fields[3])
	}
	if box.YMin, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return box, fmt.Errorf("bad ymin %q", fields[4])
	}
	if box.XMax, err = strconv.ParseFloat(fields[5], 64); err != nil {
		return box, fmt.Errorf("bad xmax %q", fields[5])
	}
	if box.YMax, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return box, fmt.Errorf("bad ymax %q", fields[6])
	}
	return box, nil
}
