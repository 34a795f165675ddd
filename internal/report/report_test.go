package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

func sampleResult() *pipeline.Result {
	rng, ok := preprocess.MapQuarterToRange(preprocess.Q3, 2025)
	rec := preprocess.Assemble(preprocess.Q3, 2025, rng, ok, map[string]string{"REVENUE": "Rs. 1234 cr"})
	return &pipeline.Result{
		RequestID:   "req-1",
		Document:    "q3.pdf",
		Engine:      "pdf-layout",
		Mode:        pipeline.ModeComprehensive,
		Quarter:     preprocess.Q3,
		FiscalYear:  "FY25",
		Terms:       []string{"REVENUE", "PAT"},
		Anchors:     []int{42},
		Values:      map[string]string{"PAT": "Rs. 512 cr", "REVENUE": "Rs. 1234 cr", "NOTE": "unaudited"},
		Correlation: &rec,
		Warnings:    []string{"something odd"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, "yml": FormatYAML, " table ": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "FY25", decoded["fiscal_year"])

	out := buf.String()
	q := strings.Index(out, `"Quarter": "Q3"`)
	cal := strings.Index(out, `"Calendar End Date": "December 31, 2024"`)
	rev := strings.Index(out, `"REVENUE": "Rs. 1234 cr"`)
	require.True(t, q >= 0 && cal >= 0 && rev >= 0, out)
	assert.Less(t, q, cal)
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "fiscal_year: FY25")
	assert.Contains(t, out, "correlation:\n  Quarter: Q3\n  Fiscal Year: FY25\n  Start Date: October 1, 2024\n")

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	corr, ok := decoded["correlation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Rs. 1234 cr", corr["REVENUE"])
}

func TestWrite_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleResult()))
	out := buf.String()

	for _, want := range []string{"Q3 FY25", "q3.pdf", "Rs. 512 cr", "October 1, 2024", "warning: something odd"} {
		assert.Contains(t, out, want)
	}
	// Requested terms come first, extras after.
	assert.Less(t, strings.Index(out, "REVENUE"), strings.Index(out, "NOTE"))
}

func TestWrite_ScanAndQuery(t *testing.T) {
	data := pipeline.NewDocumentData()
	data.Quarterly["Q3 FY25"] = map[string]string{"PAT": "Rs. 512 cr"}
	data.Metrics["Revenue"] = "Rs. 1234 cr"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, &pipeline.ScanResult{Document: "r.pdf", Chunks: 2, CacheHits: 1, Data: data}))
	assert.Contains(t, buf.String(), "2 (1 cached)")
	assert.Contains(t, buf.String(), "Rs. 512 cr")
	assert.Contains(t, buf.String(), "Rs. 1234 cr")

	buf.Reset()
	require.NoError(t, Write(&buf, FormatTable, &pipeline.QueryResult{Answer: "PAT for Q3 FY25: Rs. 512 cr"}))
	assert.Equal(t, "PAT for Q3 FY25: Rs. 512 cr\n", buf.String())
}

func TestWrite_Unsupported(t *testing.T) {
	err := Write(&bytes.Buffer{}, FormatTable, time.Now())
	assert.Error(t, err)

	err = Write(&bytes.Buffer{}, Format("xml"), sampleResult())
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}
