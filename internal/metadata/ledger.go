package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// LedgerHeader is the column order of every capture ledger
var LedgerHeader = []string{
	"image_filename",
	"accession",
	"project",
	"file_format",
	"copyright",
	"usage_terms",
	"creator",
	"timestamp",
	"device",
	"caption",
	"title",
}

// LogRow is one ledger line
type LogRow struct {
	ImageFilename string `json:"image_filename"`
	Accession     string `json:"accession"`
	Project       string `json:"project"`
	FileFormat    string `json:"file_format"`
	Copyright     string `json:"copyright"`
	UsageTerms    string `json:"usage_terms"`
	Creator       string `json:"creator"`
	Timestamp     string `json:"timestamp"`
	Device        string `json:"device"`
	Caption       string `json:"caption"`
	Title         string `json:"title"`
}

func (r LogRow) record() []string {
	return []string{
		r.ImageFilename,
		r.Accession,
		r.Project,
		r.FileFormat,
		r.Copyright,
		r.UsageTerms,
		r.Creator,
		r.Timestamp,
		r.Device,
		r.Caption,
		r.Title,
	}
}

func rowFromRecord(rec []string) LogRow {
	return LogRow{
		ImageFilename: rec[0],
		Accession:     rec[1],
		Project:       rec[2],
		FileFormat:    rec[3],
		Copyright:     rec[4],
		UsageTerms:    rec[5],
		Creator:       rec[6],
		Timestamp:     rec[7],
		Device:        rec[8],
		Caption:       rec[9],
		Title:         rec[10],
	}
}

// LedgerPath returns output_root/project/<project>_captures.csv
func LedgerPath(outputRoot, project string) string {
	return filepath.Join(outputRoot, project, project+"_captures.csv")
}

// Ledger appends capture rows to per-project CSV files
type Ledger struct {
	mu sync.Mutex
}

// NewLedger creates a Ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// AppendLogRow appends row, writing the header first when the file is new.
// Rows are never deduplicated.
func (l *Ledger) AppendLogRow(outputRoot, project string, row LogRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := LedgerPath(outputRoot, project)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ledger folder: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(LedgerHeader); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(row.record()); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return f.Sync()
}

// ReadLog returns every row of a project's ledger in file order.
// A missing ledger yields no rows.
func (l *Ledger) ReadLog(outputRoot, project string) ([]LogRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(LedgerPath(outputRoot, project))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(LedgerHeader)

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if header[0] != LedgerHeader[0] {
		return nil, fmt.Errorf("ledger %s has an unexpected header", f.Name())
	}

	var rows []LogRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read ledger row: %w", err)
		}
		rows = append(rows, rowFromRecord(rec))
	}
	return rows, nil
}
