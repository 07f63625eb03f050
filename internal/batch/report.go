package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

var reportHeader = []any{"row", "video_id", "status", "cache_hit", "entries", "gaps", "elapsed_seconds", "output_dir", "error"}

// WriteReport saves the summary as a one-sheet workbook.
func WriteReport(path string, summary Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &reportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for i, res := range summary.Results {
		status, errText := "succeeded", ""
		if res.Err != nil {
			status, errText = "failed", services.Kind(res.Err)+": "+res.Err.Error()
		}
		row := []any{res.Item.Row, res.VideoID, status, res.CacheHit, res.Entries, res.Gaps,
			res.Elapsed.Seconds(), res.OutputDir, errText}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("write report row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
