package dataset

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
)

// LoaderConfig configures dataset acquisition.
type LoaderConfig struct {
	URL     string        // Archive URL
	Dir     string        // Working directory for the download and extraction
	Target  string        // Target column that must appear in the selected file's header
	Timeout time.Duration // Per-request HTTP timeout
	Retries int           // Retry attempts after the first failed download
}

// Loader downloads the source archive, expands it, selects the data file
// and reads it into a raw Table. The download is the only network
// operation in the pipeline; it retries with linear backoff because the
// upstream host serves from cold storage and sporadically times out.
type Loader struct {
	cfg    LoaderConfig
	client *http.Client
	logger log.Logger
}

// NewLoader creates a Loader. Zero Timeout defaults to 60s, negative
// Retries to 0.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.GetLoggerWithName("dataset").With(
			log.ComponentKey, "loader",
		),
	}
}

// Fetch runs the full acquisition: download, expand, select, read,
// validate. The header of the selected file is checked for the target
// column immediately, before any cleaning, so a wrong file fails loudly
// at the source rather than three stages later.
//
// Errors:
//   - AcquisitionError: network or archive failure
//   - NoDataFileError: archive contains neither spreadsheet nor CSV
//   - SchemaError: selected file lacks the target column
func (l *Loader) Fetch(ctx context.Context) (*Table, error) {
	start := time.Now()
	l.logger.Info("Acquisition started",
		log.OperationKey, log.OperationLoad,
		log.URLKey, l.cfg.URL,
	)

	archivePath, err := l.download(ctx)
	if err != nil {
		return nil, err
	}

	extractDir := filepath.Join(l.cfg.Dir, "extracted")
	if err := expandArchive(archivePath, extractDir); err != nil {
		return nil, pkgerrors.NewAcquisitionError(l.cfg.URL, err)
	}

	dataPath, err := SelectDataFile(extractDir)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Data file selected",
		log.OperationKey, log.OperationLoad,
		log.PathKey, dataPath,
	)

	table, err := ReadTable(dataPath)
	if err != nil {
		return nil, err
	}

	if l.cfg.Target != "" && !table.HasColumn(l.cfg.Target) {
		return nil, pkgerrors.NewSchemaError("Loader.Fetch", l.cfg.Target)
	}

	l.logger.Info("Acquisition completed",
		log.OperationKey, log.OperationLoad,
		log.RowsKey, table.NumRows(),
		log.ColumnsKey, len(table.Columns),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return table, nil
}

// download fetches the archive to disk, retrying on failure.
func (l *Loader) download(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.cfg.Dir, 0o755); err != nil {
		return "", pkgerrors.NewAcquisitionError(l.cfg.URL, err)
	}
	dest := filepath.Join(l.cfg.Dir, "dataset"+archiveExt(l.cfg.URL))

	var lastErr error
	for attempt := 0; attempt <= l.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			l.logger.Warn("Retrying download",
				log.AttemptKey, attempt,
				log.URLKey, l.cfg.URL,
			)
			select {
			case <-ctx.Done():
				return "", pkgerrors.NewAcquisitionError(l.cfg.URL, ctx.Err())
			case <-time.After(backoff):
			}
		}

		if err := l.downloadOnce(ctx, dest); err != nil {
			lastErr = err
			continue
		}
		return dest, nil
	}
	return "", pkgerrors.NewAcquisitionError(l.cfg.URL, lastErr)
}

func (l *Loader) downloadOnce(ctx context.Context, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, resp.Body)
	return err
}

func archiveExt(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ".tar.gz"
	default:
		return ".zip"
	}
}

// expandArchive expands a zip or tar.gz archive into dir.
func expandArchive(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz") {
		return expandTarGz(path, dir)
	}
	return expandZip(path, dir)
}

func expandZip(path, dir string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, rc)
	return err
}

func expandTarGz(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

// safeJoin joins an archive entry name onto dir. Rooting the entry name
// before cleaning strips any dot-dot traversal; the prefix check guards
// the remaining platform edge cases.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.Clean("/"+name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
		return "", pkgerrors.NewValueError("expandArchive", "archive entry escapes extraction directory: "+name)
	}
	return target, nil
}

var spreadsheetExts = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true}

// SelectDataFile picks the data file inside an expanded archive: the
// first spreadsheet in lexical walk order, falling back to the first CSV
// if no spreadsheet exists.
//
// Errors:
//   - NoDataFileError: neither a spreadsheet nor a CSV was found
func SelectDataFile(dir string) (string, error) {
	var spreadsheets, csvs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch ext := strings.ToLower(filepath.Ext(path)); {
		case spreadsheetExts[ext]:
			spreadsheets = append(spreadsheets, path)
		case ext == ".csv":
			csvs = append(csvs, path)
		}
		return nil
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "orfcast: walking extracted archive")
	}

	sort.Strings(spreadsheets)
	sort.Strings(csvs)

	if len(spreadsheets) > 0 {
		return spreadsheets[0], nil
	}
	if len(csvs) > 0 {
		return csvs[0], nil
	}
	return "", pkgerrors.NewNoDataFileError(dir)
}

// ReadTable reads a spreadsheet or CSV file into a raw Table. Spreadsheets
// are read from their first sheet.
func ReadTable(path string) (*Table, error) {
	if spreadsheetExts[strings.ToLower(filepath.Ext(path))] {
		return readSpreadsheet(path)
	}
	return readCSV(path)
}

func readSpreadsheet(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "orfcast: opening spreadsheet %s", path)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, pkgerrors.NewValueError("ReadTable", "spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "orfcast: reading sheet %s", sheets[0])
	}
	return tableFromRows(rows)
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "orfcast: opening CSV %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "orfcast: reading CSV %s", path)
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, pkgerrors.NewValueError("ReadTable", "file must have a header row and at least one data row")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Table{Columns: header, Rows: rows[1:]}, nil
}
