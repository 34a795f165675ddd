package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

// SystemPrompt frames every quarter extraction call.
const SystemPrompt = "You are a financial data extraction tool. Extract ONLY the requested values."

// ScanPromptVersion is mixed into chunk ids; bump it whenever buildScanPrompt
// changes so stale cache entries are not reused.
const ScanPromptVersion = "scan-v1"

// buildQuarterPrompt asks for the given terms as printed for one quarter,
// using only the anchored context window.
func buildQuarterPrompt(q preprocess.Quarter, year preprocess.FiscalYear, terms []string, window string) string {
	label := string(q) + year.Short()

	var b strings.Builder
	fmt.Fprintf(&b, "Extract ONLY financial values explicitly labeled for %s.\n\n", label)
	fmt.Fprintf(&b, "- Quarter: %s\n", q)
	fmt.Fprintf(&b, "- Year: %s\n", year.Short())
	fmt.Fprintf(&b, "- Terms: %s\n", strings.Join(terms, ", "))
	b.WriteString("- DO NOT return values from other quarters, YTD figures, or cumulative values.\n")
	b.WriteString("- If term not found, return \"Not found\".\n")
	b.WriteString("- Return ONLY a JSON object keyed by term. Do NOT wrap it in code fences.\n\n")
	b.WriteString("Example response:\n")
	b.WriteString("{\n    \"Revenue\": \"Rs. 100 cr\",\n    \"PAT\": \"Rs. 50 cr\"\n}\n\n")
	b.WriteString("Text context:\n")
	b.WriteString(window)
	return b.String()
}

// buildScanPrompt asks for every figure in one chunk of a document.
func buildScanPrompt(chunk string) string {
	var b strings.Builder
	b.WriteString("Analyze the following document text and extract any relevant financial data. ")
	b.WriteString("The document might contain revenue, profit, EBITDA, EPS, dividends and other financial metrics.\n\n")
	b.WriteString("Return ONLY a JSON object with exactly these keys:\n")
	fmt.Fprintf(&b, "- %q: object mapping a quarter label such as \"Q3 FY25\" to an object of metric -> value\n", sectionQuarterly)
	fmt.Fprintf(&b, "- %q: object mapping a fiscal year label such as \"FY24\" to an object of metric -> value\n", sectionAnnual)
	fmt.Fprintf(&b, "- %q: object mapping metric -> most recent value\n\n", sectionMetrics)
	b.WriteString("Copy values exactly as printed, including currency and unit (e.g. \"Rs. 1234 cr\"). ")
	b.WriteString("Use empty objects when nothing applies. Do NOT wrap the response in code fences.\n\n")
	b.WriteString("Document Text:\n")
	b.WriteString(chunk)
	return b.String()
}
