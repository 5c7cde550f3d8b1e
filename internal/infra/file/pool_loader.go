package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"photo-quiz-service/internal/domain"
)

// PoolLoader reads the question pool from a CSV or YAML export of the quiz spreadsheet.
//
// CSV files need a header row naming the filename, answer and gender columns
// (any order, case-insensitive). YAML files hold a list of
// {filename, answer, gender} mappings.
type PoolLoader struct {
	path string
}

func NewPoolLoader(path string) *PoolLoader {
	return &PoolLoader{path: path}
}

type rawRecord struct {
	Filename string `yaml:"filename"`
	Answer   string `yaml:"answer"`
	Gender   string `yaml:"gender"`
}

func (l *PoolLoader) LoadPool(_ context.Context) (domain.Pool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return domain.Pool{}, &domain.LoadError{Source: l.path, Err: err}
	}
	defer f.Close()

	var raws []rawRecord
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".csv":
		raws, err = readCSV(f)
	case ".yaml", ".yml":
		raws, err = readYAML(f)
	default:
		err = fmt.Errorf("unsupported pool format %q", ext)
	}
	if err != nil {
		return domain.Pool{}, &domain.LoadError{Source: l.path, Err: err}
	}

	return buildPool(l.path, raws)
}

// buildPool validates every row; one bad row fails the whole load.
func buildPool(source string, raws []rawRecord) (domain.Pool, error) {
	if len(raws) == 0 {
		return domain.Pool{}, &domain.LoadError{Source: source, Err: domain.ErrEmptyPool}
	}
	records := make([]domain.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := domain.NewRecord(raw.Filename, raw.Answer, raw.Gender)
		if err != nil {
			return domain.Pool{}, &domain.LoadError{Source: source, Row: i + 1, Err: err}
		}
		records = append(records, rec)
	}
	return domain.NewPool(records), nil
}

func readCSV(r io.Reader) ([]rawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"filename", "answer", "gender"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var out []rawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rawRecord{
			Filename: row[cols["filename"]],
			Answer:   row[cols["answer"]],
			Gender:   row[cols["gender"]],
		})
	}
}

func readYAML(r io.Reader) ([]rawRecord, error) {
	var out []rawRecord
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
