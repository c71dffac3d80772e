package dataset

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSelectDataFile_PrefersSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "x\n1\n")
	writeFile(t, filepath.Join(dir, "nested", "data.xlsx"), "not a real workbook")

	got, err := SelectDataFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "data.xlsx"), got)
}

func TestSelectDataFile_FallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.txt"), "about the data")
	writeFile(t, filepath.Join(dir, "b.csv"), "x\n1\n")
	writeFile(t, filepath.Join(dir, "a.csv"), "x\n1\n")

	got, err := SelectDataFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv"), got, "lexically first CSV wins")
}

func TestSelectDataFile_NoDataFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.txt"), "nothing tabular here")

	_, err := SelectDataFile(dir)
	var noData *pkgerrors.NoDataFileError
	require.ErrorAs(t, err, &noData)
}

func TestReadTable_CSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wells.csv")
	writeFile(t, path, " THK ,ORF\n12,0.35\n14,0.4\n")

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"THK", "ORF"}, table.Columns, "header cells are trimmed")
	assert.Equal(t, 2, table.NumRows())
	assert.True(t, table.HasColumn("ORF"))
}

func TestReadTable_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	writeFile(t, path, "THK,ORF\n")

	_, err := ReadTable(path)
	var valueErr *pkgerrors.ValueError
	require.ErrorAs(t, err, &valueErr)
}

// buildZip writes a zip archive containing a single CSV entry.
func buildZip(t *testing.T, path, entry, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entry)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestLoader_Fetch(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "dataset.zip")
	buildZip(t, archive, "data/wells.csv", "THK,ORF\n12,0.35\n14,0.4\n")
	payload, err := os.ReadFile(archive)
	require.NoError(t, err)

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			// First attempt fails so the retry path is exercised too.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	loader := NewLoader(LoaderConfig{
		URL:     srv.URL + "/dataset.zip",
		Dir:     t.TempDir(),
		Target:  "ORF",
		Retries: 1,
	})

	table, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Equal(t, []string{"THK", "ORF"}, table.Columns)
	assert.Equal(t, 2, table.NumRows())
}

func TestLoader_Fetch_MissingTarget(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "dataset.zip")
	buildZip(t, archive, "wells.csv", "THK,POROSITY\n12,0.2\n")
	payload, err := os.ReadFile(archive)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	loader := NewLoader(LoaderConfig{
		URL:    srv.URL + "/dataset.zip",
		Dir:    t.TempDir(),
		Target: "ORF",
	})

	_, err = loader.Fetch(context.Background())
	var schemaErr *pkgerrors.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "ORF", schemaErr.Column)
}

func TestLoader_Fetch_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loader := NewLoader(LoaderConfig{
		URL: srv.URL + "/gone.zip",
		Dir: t.TempDir(),
	})

	_, err := loader.Fetch(context.Background())
	var acqErr *pkgerrors.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
}

func TestSafeJoin_NeutralizesTraversal(t *testing.T) {
	dir := t.TempDir()

	got, err := safeJoin(dir, "../escape.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.csv"), got, "dot-dot segments are stripped, not honored")

	got, err = safeJoin(dir, "sub/ok.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "ok.csv"), got)
}
