package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.jsonl",
		`{"file_name":"bouw.pdf","cao_name":"CAO Bouw","pdf_url":"https://example.com/bouw.pdf"}

{"file_name":"metaal.pdf","cao_name":"CAO Metaal","page_url":"https://example.com/metaal"}
`)

	entries, err := ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "bouw.pdf", entries[0].FileName)
	assert.Equal(t, "CAO Bouw", entries[0].CAOName)
	assert.Equal(t, "https://example.com/bouw.pdf", entries[0].PDFURL)
	assert.Equal(t, "metaal.pdf", entries[1].FileName)
}

func TestReadManifestMalformedLine(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.jsonl",
		`{"file_name":"bouw.pdf"}
{not json}
`)

	_, err := ReadManifest(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadManifestMissingFileName(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.jsonl", `{"cao_name":"CAO Bouw"}`+"\n")

	_, err := ReadManifest(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file_name")
}

func TestLoadRawDocumentsFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bouw.pdf", "bouw pdf bytes")
	manifest := writeFile(t, dir, "manifest.jsonl",
		`{"file_name":"bouw.pdf","cao_name":"CAO Bouw","pdf_url":"https://example.com/bouw.pdf"}`+"\n")

	raws, err := LoadRawDocuments(manifest, dir)
	require.NoError(t, err)
	require.Len(t, raws, 1)

	assert.Equal(t, "CAO Bouw", raws[0].Name)
	assert.Equal(t, "bouw.pdf", raws[0].FileName)
	assert.Equal(t, "https://example.com/bouw.pdf", raws[0].SourceURL)
	assert.Equal(t, []byte("bouw pdf bytes"), raws[0].Bytes)
}

func TestLoadRawDocumentsMissingPDF(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.jsonl", `{"file_name":"missing.pdf"}`+"\n")

	_, err := LoadRawDocuments(manifest, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.pdf")
}

func TestLoadRawDocumentsFallsBackToDirectoryScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cao_bouw_2024.pdf", "bouw bytes")
	writeFile(t, dir, "cao_metaal.PDF", "metaal bytes")
	writeFile(t, dir, "notes.txt", "ignored")

	raws, err := LoadRawDocuments(filepath.Join(dir, "absent.jsonl"), dir)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	// Names derive from file names; ordering is lexicographic.
	assert.Equal(t, "cao bouw 2024", raws[0].Name)
	assert.Equal(t, "cao_bouw_2024.pdf", raws[0].FileName)
	assert.Equal(t, "cao metaal", raws[1].Name)
}

func TestLoadRawDocumentsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRawDocuments(filepath.Join(dir, "absent.jsonl"), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files")
}
