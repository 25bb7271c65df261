package service

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sectordocs/caodex/internal/domain"
)

// ManifestEntry is one line of the ingestion manifest: a local PDF file
// together with the agreement name and source URLs it was downloaded from.
type ManifestEntry struct {
	FileName string `json:"file_name"`
	CAOName  string `json:"cao_name"`
	PageURL  string `json:"page_url,omitempty"`
	PDFURL   string `json:"pdf_url,omitempty"`
}

// ReadManifest parses a JSONL manifest. Blank lines are skipped; a
// malformed line fails the whole read with its line number.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ManifestEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		if entry.FileName == "" {
			return nil, fmt.Errorf("manifest line %d: missing file_name", lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return entries, nil
}

// LoadRawDocuments reads the PDFs named by the manifest from dataDir. When
// the manifest is absent it falls back to every *.pdf in dataDir, deriving
// the agreement name from the file name.
func LoadRawDocuments(manifestPath, dataDir string) ([]domain.RawDocument, error) {
	entries, err := ReadManifest(manifestPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		entries, err = scanDataDir(dataDir)
		if err != nil {
			return nil, err
		}
	}

	raws := make([]domain.RawDocument, 0, len(entries))
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dataDir, entry.FileName))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.FileName, err)
		}
		name := entry.CAOName
		if name == "" {
			name = nameFromFile(entry.FileName)
		}
		sourceURL := entry.PDFURL
		if sourceURL == "" {
			sourceURL = entry.PageURL
		}
		raws = append(raws, domain.RawDocument{
			Name:      name,
			FileName:  entry.FileName,
			SourceURL: sourceURL,
			Bytes:     data,
		})
	}
	return raws, nil
}

func scanDataDir(dataDir string) ([]ManifestEntry, error) {
	dirEntries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	var entries []ManifestEntry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".pdf") {
			continue
		}
		entries = append(entries, ManifestEntry{FileName: de.Name()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FileName < entries[j].FileName })
	if len(entries) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s", dataDir)
	}
	return entries, nil
}

func nameFromFile(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return strings.ReplaceAll(base, "_", " ")
}
