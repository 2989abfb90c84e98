// Package store reads and writes the saved board file: an object mapping
// stable keys ("0", "1", ...) to entity records. Files ending in .yaml or
// .yml are YAML; everything else is JSON.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/scrapedeck/models"
)

// ErrNotFound is returned when the board file does not exist.
var ErrNotFound = errors.New("board file not found")

// ErrMalformed is returned when the board file cannot be decoded.
var ErrMalformed = errors.New("board file is corrupted")

// Entry is one keyed record read from a board file.
type Entry struct {
	Key    string
	Record models.Record
}

// rawRecord distinguishes absent fields from zero values.
type rawRecord struct {
	URL             *string `json:"url" yaml:"url"`
	Filter          *string `json:"filter" yaml:"filter"`
	IsWithCSS       *bool   `json:"is_with_css" yaml:"is_with_css"`
	OutputOption    *int    `json:"output_option" yaml:"output_option"`
	IsWithTransform *bool   `json:"is_with_transform" yaml:"is_with_transform"`
	Transform       *string `json:"transform" yaml:"transform"`
	FilterMode      *string `json:"filter_mode" yaml:"filter_mode"`
}

// record fills absent fields with the defaults of a new entity.
func (r rawRecord) record() models.Record {
	rec := models.Record{IsWithCSS: true}
	if r.URL != nil {
		rec.URL = *r.URL
	}
	if r.Filter != nil {
		rec.Filter = *r.Filter
	}
	if r.IsWithCSS != nil {
		rec.IsWithCSS = *r.IsWithCSS
	}
	if r.OutputOption != nil {
		rec.OutputOption = *r.OutputOption
	}
	if r.IsWithTransform != nil {
		rec.IsWithTransform = *r.IsWithTransform
	}
	if r.Transform != nil {
		rec.Transform = *r.Transform
	}
	if r.FilterMode != nil {
		rec.FilterMode = *r.FilterMode
	}
	return rec
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the board file at path and returns its entries ordered by key,
// numeric keys first in numeric order.
// A missing file yields ErrNotFound; undecodable content yields an error
// wrapping ErrMalformed.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-chosen board file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	raw := map[string]rawRecord{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	entries := make([]Entry, 0, len(raw))
	for key, r := range raw {
		entries = append(entries, Entry{Key: key, Record: r.record()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return keyLess(entries[i].Key, entries[j].Key)
	})
	return entries, nil
}

func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

// Save writes records to path keyed by their position. The file is written
// to a temporary sibling first and renamed into place.
func Save(path string, records []models.Record) error {
	keyed := make(map[string]models.Record, len(records))
	for i, rec := range records {
		keyed[strconv.Itoa(i)] = rec
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(keyed)
	} else {
		data, err = json.MarshalIndent(keyed, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create board dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // board files are not secret
		return fmt.Errorf("write board: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write board: %w", err)
	}
	return nil
}
