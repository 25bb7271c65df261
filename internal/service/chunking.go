package service

import (
	"strings"

	"github.com/sectordocs/caodex/internal/pdfextract"
)

// ChunkConfig controls fixed-size chunking of extracted text.
type ChunkConfig struct {
	// TargetSize is the window size in characters (runes).
	TargetSize int
	// Overlap is the number of trailing characters of a window repeated at
	// the start of the next one. Zero means disjoint tiling.
	Overlap int
}

// DefaultChunkConfig provides the standard chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetSize: 500,
		Overlap:    0,
	}
}

// ChunkRecord is one window of the concatenated page text with its
// positional provenance.
type ChunkRecord struct {
	Index     int
	Content   string
	PageStart int
	PageEnd   int
	CharStart int
	CharEnd   int
}

// pageSpan records that characters [Start, End) of the concatenated stream
// came from Page. Spans are ordered and non-overlapping.
type pageSpan struct {
	Page  int
	Start int
	End   int
}

// ChunkPages splits ordered page texts into fixed-size windows with
// character and page provenance. Boundaries are exact and reproducible:
// re-chunking the same pages yields identical records. Windows that are
// entirely whitespace are dropped; a trailing remainder shorter than the
// target size still becomes its own final chunk.
func ChunkPages(pages []pdfextract.Page, cfg ChunkConfig) []ChunkRecord {
	if cfg.TargetSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetSize {
		cfg.Overlap = 0
	}

	var sb strings.Builder
	spans := make([]pageSpan, 0, len(pages))
	cursor := 0
	for _, p := range pages {
		start := cursor
		sb.WriteString(p.Text)
		cursor += len([]rune(p.Text))
		spans = append(spans, pageSpan{Page: p.Number, Start: start, End: cursor})
	}

	runes := []rune(sb.String())
	if len(strings.TrimSpace(string(runes))) == 0 {
		return nil
	}

	step := cfg.TargetSize - cfg.Overlap
	records := make([]ChunkRecord, 0, len(runes)/step+1)
	index := 0
	for start := 0; start < len(runes); start += step {
		end := start + cfg.TargetSize
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			pageStart, pageEnd := pagesFor(spans, start, end)
			records = append(records, ChunkRecord{
				Index:     index,
				Content:   content,
				PageStart: pageStart,
				PageEnd:   pageEnd,
				CharStart: start,
				CharEnd:   end,
			})
			index++
		}

		if end == len(runes) {
			break
		}
	}

	return records
}

// pagesFor resolves the first and last page touched by [charStart, charEnd).
func pagesFor(spans []pageSpan, charStart, charEnd int) (int, int) {
	pageStart, pageEnd := 0, 0
	for _, s := range spans {
		if s.End <= charStart || s.Start == s.End {
			continue
		}
		if s.Start >= charEnd {
			break
		}
		if pageStart == 0 {
			pageStart = s.Page
		}
		pageEnd = s.Page
	}
	return pageStart, pageEnd
}
