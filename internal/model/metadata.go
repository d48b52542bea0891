package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// VGG16 defaults, used when the metadata file leaves a field out.
var (
	defaultInputShape  = []int64{1, 224, 224, 3}
	defaultOutputShape = []int64{1, 1000}
	defaultMean        = []float32{103.939, 116.779, 123.68}
)

// LoadMetadata reads the metadata file at path and resolves its class
// vocabulary. A relative class_index path is taken relative to the
// metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	meta.applyDefaults()

	if len(meta.Classes) == 0 && meta.ClassIndex != "" {
		indexPath := meta.ClassIndex
		if !filepath.IsAbs(indexPath) {
			indexPath = filepath.Join(filepath.Dir(path), indexPath)
		}
		classes, err := LoadClassIndex(indexPath)
		if err != nil {
			return nil, err
		}
		meta.Classes = classes
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if len(m.InputShape) == 0 {
		m.InputShape = defaultInputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = defaultOutputShape
	}
	if m.ImageSize == 0 && len(m.InputShape) == 4 {
		m.ImageSize = int(m.InputShape[1])
	}
	if len(m.Mean) == 0 {
		m.Mean = defaultMean
	}
	if m.Interpolation == "" {
		m.Interpolation = "nearest"
	}
}

// Validate checks that the shapes agree with each other and with the
// vocabulary. The input must be NHWC with a batch of one.
func (m *Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[3] != 3 {
		return fmt.Errorf("input shape must be [1 H W 3], got %v", m.InputShape)
	}
	if m.InputShape[1] != int64(m.ImageSize) || m.InputShape[2] != int64(m.ImageSize) {
		return fmt.Errorf("input shape %v does not match image size %d", m.InputShape, m.ImageSize)
	}
	if len(m.Mean) != 3 {
		return fmt.Errorf("mean must have 3 values, got %d", len(m.Mean))
	}
	switch m.Interpolation {
	case "nearest", "bilinear", "bicubic", "lanczos":
	default:
		return fmt.Errorf("unknown interpolation %q", m.Interpolation)
	}
	if m.NumClasses() != len(m.Classes) {
		return fmt.Errorf("model has %d outputs but vocabulary has %d classes", m.NumClasses(), len(m.Classes))
	}
	return nil
}

// InputSize is the number of float32 values the model expects per call.
func (m *Metadata) InputSize() int {
	return product(m.InputShape)
}

func (m *Metadata) NumClasses() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}

// BGRMean returns the channel means in blue, green, red order.
func (m *Metadata) BGRMean() [3]float32 {
	return [3]float32{m.Mean[0], m.Mean[1], m.Mean[2]}
}

// LoadClassIndex reads a class index in the Keras imagenet_class_index.json
// layout, {"0": ["n01440764", "tench"], ...}, and returns the labels
// ordered by index.
func LoadClassIndex(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class index: %w", err)
	}

	var index map[string][]string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("failed to parse class index: %w", err)
	}

	ids := make([]int, 0, len(index))
	for key, entry := range index {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("class index key %q is not a number", key)
		}
		if len(entry) != 2 {
			return nil, fmt.Errorf("class %d: expected [wnid, label], got %v", id, entry)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	classes := make([]string, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("class index is not contiguous: missing %d", i)
		}
		classes[i] = index[strconv.Itoa(id)][1]
	}
	return classes, nil
}

func product(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}
