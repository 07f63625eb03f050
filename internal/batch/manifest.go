package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Item is one manifest row.
type Item struct {
	// Row is the 1-based spreadsheet row, header included.
	Row     int
	VideoID string
	Path    string
}

// LoadManifest reads an .xlsx or .csv manifest. Relative paths resolve
// against the manifest's directory. Rows without a path are skipped.
func LoadManifest(path string) ([]Item, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path)
	case ".csv", ".txt":
		rows, err = readCSV(path)
	default:
		return nil, services.Wrap(services.ErrInvalidConfiguration, "batch", "manifest",
			fmt.Sprintf("unsupported manifest type %q (want .xlsx or .csv)", filepath.Ext(path)), nil)
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows, filepath.Dir(path))
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, manifestError("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read manifest rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseRows(rows [][]string, baseDir string) ([]Item, error) {
	if len(rows) <= 1 {
		return nil, manifestError("no data rows")
	}
	pathIdx, idIdx := -1, -1
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case pathIdx == -1 && (name == "path" || strings.Contains(name, "file") || strings.Contains(name, "video_path")):
			pathIdx = i
		case idIdx == -1 && (name == "id" || strings.Contains(name, "video_id") || strings.Contains(name, "video id")):
			idIdx = i
		}
	}
	if pathIdx == -1 {
		return nil, manifestError("header must include a path column")
	}

	var items []Item
	seen := make(map[string]int)
	for i, r := range rows[1:] {
		row := i + 2
		item := Item{Row: row, Path: cell(r, pathIdx), VideoID: cell(r, idIdx)}
		if item.Path == "" {
			continue
		}
		if !filepath.IsAbs(item.Path) {
			item.Path = filepath.Join(baseDir, item.Path)
		}
		if item.VideoID != "" {
			if prev, dup := seen[item.VideoID]; dup {
				return nil, manifestError(fmt.Sprintf("video id %q repeated on rows %d and %d", item.VideoID, prev, row))
			}
			seen[item.VideoID] = row
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, manifestError("no rows with a path")
	}
	return items, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func manifestError(msg string) error {
	return services.Wrap(services.ErrInvalidConfiguration, "batch", "manifest", msg, nil)
}
