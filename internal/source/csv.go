package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ignite/segment-insights/internal/segmentation"
)

// CSVSource reads the customer table from a local file.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a file-backed table loader.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Load reads and parses the file on every call.
func (s *CSVSource) Load(ctx context.Context) (segmentation.Table, error) {
	if err := ctx.Err(); err != nil {
		return segmentation.Table{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return table, nil
}

// ReadTable parses delimited text whose first line is the header.
// Rows may be ragged; the store reports short rows against their column.
func ReadTable(r io.Reader) (segmentation.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return segmentation.Table{}, errors.New("csv has no header row")
	}
	if err != nil {
		return segmentation.Table{}, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return segmentation.Table{}, err
	}
	return segmentation.Table{Header: header, Rows: rows}, nil
}
