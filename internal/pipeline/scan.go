package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/quarterly-extractor/internal/cache"
	"github.com/dvloznov/quarterly-extractor/internal/llm"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

// Chunking defaults for a full-document scan.
const (
	DefaultChunkSize    = 12000
	DefaultChunkOverlap = 500
)

// Section names the scan prompt asks the model to use.
const (
	sectionQuarterly = "Quarterly Data"
	sectionAnnual    = "Annual Data"
	sectionMetrics   = "Financial Metrics"
)

// Answers for queries that cannot be served.
const (
	MsgNoData         = "No extracted data available. Run extraction first."
	MsgMetricNotFound = "Metric not found in extracted data."
)

// DocumentData is everything a full-document scan found, keyed by period
// label and metric name as the model printed them.
type DocumentData struct {
	Quarterly map[string]map[string]string `json:"quarterly" yaml:"quarterly"`
	Annual    map[string]map[string]string `json:"annual" yaml:"annual"`
	Metrics   map[string]string            `json:"metrics" yaml:"metrics"`
}

// NewDocumentData returns an empty, writable DocumentData.
func NewDocumentData() *DocumentData {
	return &DocumentData{
		Quarterly: map[string]map[string]string{},
		Annual:    map[string]map[string]string{},
		Metrics:   map[string]string{},
	}
}

// Empty reports whether nothing was extracted.
func (d *DocumentData) Empty() bool {
	return d == nil || (len(d.Quarterly) == 0 && len(d.Annual) == 0 && len(d.Metrics) == 0)
}

// Answer looks up the metric of a parsed query. With a period it searches
// quarterly data, then annual data; without one it searches the metrics.
func (d *DocumentData) Answer(q preprocess.Query) string {
	if d.Empty() {
		return MsgNoData
	}

	if q.Period != "" {
		want := preprocess.PeriodKey(q.Period)
		for _, section := range []map[string]map[string]string{d.Quarterly, d.Annual} {
			for _, period := range sortedKeys(section) {
				if preprocess.PeriodKey(period) != want {
					continue
				}
				if v, ok := lookupMetric(section[period], q.Metric); ok {
					return fmt.Sprintf("%s for %s: %s", q.Metric, q.Period, v)
				}
			}
		}
		return MsgMetricNotFound
	}

	if v, ok := lookupMetric(d.Metrics, q.Metric); ok {
		return fmt.Sprintf("%s: %s", q.Metric, v)
	}
	return MsgMetricNotFound
}

// lookupMetric matches a metric name case-insensitively, then by canonical
// term so "Net Profit" finds a "PAT" entry.
func lookupMetric(values map[string]string, metric string) (string, bool) {
	keys := sortedKeys(values)
	for _, k := range keys {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(metric)) && usable(values[k]) {
			return values[k], true
		}
	}
	want := preprocess.StandardizeTerm(metric)
	for _, k := range keys {
		if preprocess.StandardizeTerm(k) == want && usable(values[k]) {
			return values[k], true
		}
	}
	return "", false
}

func usable(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, llm.NotFound)
}

// merge adds a decoded chunk reply. Values already present are kept so the
// earliest chunk mentioning a figure wins.
func (d *DocumentData) merge(obj map[string]interface{}) {
	for key, raw := range obj {
		switch sectionOf(key) {
		case sectionQuarterly:
			mergePeriods(d.Quarterly, raw)
		case sectionAnnual:
			mergePeriods(d.Annual, raw)
		case sectionMetrics:
			if m, ok := raw.(map[string]interface{}); ok {
				mergeValues(d.Metrics, m)
			}
		}
	}
}

func mergePeriods(dst map[string]map[string]string, raw interface{}) {
	periods, ok := raw.(map[string]interface{})
	if !ok {
		return
	}
	for period, v := range periods {
		values, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		label := strings.TrimSpace(period)
		if dst[label] == nil {
			dst[label] = map[string]string{}
		}
		mergeValues(dst[label], values)
	}
}

func mergeValues(dst map[string]string, src map[string]interface{}) {
	for k, v := range src {
		k = strings.TrimSpace(k)
		rendered := llm.RenderValue(v)
		if k == "" || !usable(rendered) {
			continue
		}
		if _, exists := dst[k]; !exists {
			dst[k] = rendered
		}
	}
}

func sectionOf(key string) string {
	switch strings.ToLower(strings.Join(strings.Fields(key), " ")) {
	case "quarterly data", "quarterly", "quarters":
		return sectionQuarterly
	case "annual data", "annual", "yearly data":
		return sectionAnnual
	case "financial metrics", "metrics":
		return sectionMetrics
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ChunkText splits text into rune windows of size with overlap runes shared
// between neighbours.
func ChunkText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Scanner extracts every figure in a document chunk by chunk. Model replies
// are memoized per chunk id so rescanning the same document is free.
type Scanner struct {
	Model     llm.Completer
	ModelName string
	MaxTokens int
	Cache     cache.Cache
	Metrics   *metrics.Metrics

	ChunkSize    int
	ChunkOverlap int
}

// ScanOutcome is the merged data plus per-chunk bookkeeping.
type ScanOutcome struct {
	Data      *DocumentData
	Chunks    int
	CacheHits int
	Warnings  []string
}

// Scan runs the model over every chunk of text and merges the replies.
// A failing chunk is skipped with a warning.
func (s *Scanner) Scan(ctx context.Context, text string) (*ScanOutcome, error) {
	size, overlap := s.ChunkSize, s.ChunkOverlap
	if size == 0 {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	}

	chunks := ChunkText(text, size, overlap)
	out := &ScanOutcome{Data: NewDocumentData(), Chunks: len(chunks)}
	log := logger.FromContext(ctx)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scanner.Scan: %w", err)
		}

		raw, hit, err := s.chunkReply(ctx, chunk)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("scanner.Scan: %w", err)
			}
			log.Warn().Err(err).Int("chunk", i+1).Msg("Chunk scan failed")
			out.Warnings = append(out.Warnings, fmt.Sprintf("Chunk %d of %d skipped: %v", i+1, len(chunks), err))
			continue
		}
		if hit {
			out.CacheHits++
		}

		obj, err := llm.ParseObject(raw)
		if err != nil {
			log.Warn().Err(err).Int("chunk", i+1).Msg("Chunk reply could not be parsed")
			out.Warnings = append(out.Warnings, fmt.Sprintf("Chunk %d of %d returned no JSON.", i+1, len(chunks)))
			continue
		}
		out.Data.merge(obj)

		if !hit && s.Cache != nil {
			if err := s.Cache.Put(ctx, cache.ChunkID(ScanPromptVersion, chunk), []byte(raw)); err != nil {
				log.Warn().Err(err).Msg("Chunk cache write failed")
			}
		}
	}

	log.Info().
		Int("chunks", out.Chunks).
		Int("cache_hits", out.CacheHits).
		Int("quarters", len(out.Data.Quarterly)).
		Int("years", len(out.Data.Annual)).
		Int("metrics", len(out.Data.Metrics)).
		Msg("Document scanned")
	return out, nil
}

// chunkReply returns the model reply for chunk, from the cache when possible.
func (s *Scanner) chunkReply(ctx context.Context, chunk string) (string, bool, error) {
	id := cache.ChunkID(ScanPromptVersion, chunk)

	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, id)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Chunk cache read failed")
		}
		s.Metrics.ObserveCache(ok)
		if ok {
			return string(cached), true, nil
		}
	}

	raw, err := s.Model.Complete(ctx, llm.Request{
		User:      buildScanPrompt(chunk),
		Model:     s.ModelName,
		MaxTokens: s.MaxTokens,
	})
	if err != nil {
		return "", false, err
	}
	return raw, false, nil
}
