// Package dataset implements breach.EmailSource over a curated breach table
// loaded once from a JSON or YAML file.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exposureshield/pkg/breach"
	"exposureshield/pkg/domain"

	"gopkg.in/yaml.v3"
)

// Entry is one row of the dataset file.
type Entry struct {
	Email       string   `json:"email" yaml:"email"`
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Domain      string   `json:"domain" yaml:"domain"`
	Date        string   `json:"date" yaml:"date"`
	DataClasses []string `json:"data_classes" yaml:"data_classes"`
}

type document struct {
	Breaches []Entry `json:"breaches" yaml:"breaches"`
}

// Dataset is an immutable in-memory breach table. It is safe for concurrent use.
type Dataset struct {
	byEmail map[string][]domain.EmailExposureRecord
	size    int
}

var _ breach.EmailSource = (*Dataset)(nil)

// Load reads the table at path. The format is chosen by extension: .yaml and
// .yml are YAML, anything else is JSON. A missing file yields an empty table.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read dataset: %w", err)
	}

	var f document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	default:
		err = json.Unmarshal(b, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse dataset %s: %w", path, err)
	}

	return New(f.Breaches), nil
}

// New indexes entries by normalized email. Entries without an email are skipped.
func New(entries []Entry) *Dataset {
	d := &Dataset{byEmail: make(map[string][]domain.EmailExposureRecord)}
	for _, e := range entries {
		email := breach.NormalizeEmail(e.Email)
		if email == "" {
			continue
		}
		d.byEmail[email] = append(d.byEmail[email], e.toDomain())
		d.size++
	}

	return d
}

func (e Entry) toDomain() domain.EmailExposureRecord {
	rec := domain.EmailExposureRecord{
		SourceName:  e.Title,
		Domain:      e.Domain,
		DataClasses: e.DataClasses,
	}
	if rec.SourceName == "" {
		rec.SourceName = e.Name
	}
	if rec.DataClasses == nil {
		rec.DataClasses = []string{}
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(e.Date)); err == nil {
		rec.BreachDate = &t
	}

	return rec
}

// Len returns the number of records in the table.
func (d *Dataset) Len() int { return d.size }

// Lookup implements breach.EmailSource. It never fails.
func (d *Dataset) Lookup(_ context.Context, email string) ([]domain.EmailExposureRecord, error) {
	records := d.byEmail[breach.NormalizeEmail(email)]
	out := make([]domain.EmailExposureRecord, len(records))
	copy(out, records)

	return out, nil
}
