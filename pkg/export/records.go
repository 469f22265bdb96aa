package export

import (
	"encoding/csv"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/storage"
)

// recordHeader is the column order shared by the CSV and XLSX writers.
var recordHeader = []string{"id", "content", "translation", "note", "source_url", "source_title", "language", "created_at"}

func recordRow(rec storage.CollectionRecord) []string {
	return []string{
		rec.ID,
		rec.Content,
		rec.Translation,
		rec.Note,
		rec.SourceURL,
		rec.SourceTitle,
		rec.Language,
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// WriteRecordsCSV writes records to w as RFC 4180 CSV with a header row.
// Fields containing quotes, commas, or newlines are quoted with embedded
// quotes doubled.
func WriteRecordsCSV(w io.Writer, records []storage.CollectionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "writing CSV header")
	}
	for _, rec := range records {
		if err := cw.Write(recordRow(rec)); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "writing CSV row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "flushing CSV")
	}
	return nil
}

const recordsSheet = "Records"

// WriteRecordsXLSX writes records to w as a single-sheet workbook with a
// bold header row.
func WriteRecordsXLSX(w io.Writer, records []storage.CollectionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(recordsSheet)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "creating sheet")
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "removing default sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "creating header style")
	}

	for col, name := range recordHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "resolving header cell")
		}
		if err := f.SetCellValue(recordsSheet, cell, name); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "writing header cell")
		}
		if err := f.SetCellStyle(recordsSheet, cell, cell, headerStyle); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "styling header cell")
		}
	}

	for i, rec := range records {
		for col, value := range recordRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeExportFailed, "resolving cell")
			}
			if err := f.SetCellValue(recordsSheet, cell, value); err != nil {
				return errors.Wrap(err, errors.ErrCodeExportFailed, "writing cell")
			}
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "writing workbook")
	}
	return nil
}
