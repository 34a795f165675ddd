package preprocess

import "strings"

// FinancialTerm is a canonical metric name sent to the model.
type FinancialTerm string

const (
	TermRevenue  FinancialTerm = "REVENUE"
	TermPAT      FinancialTerm = "PAT"
	TermEBITDA   FinancialTerm = "EBITDA"
	TermEPS      FinancialTerm = "EPS"
	TermDividend FinancialTerm = "DIVIDEND"
)

// synonyms maps every lowercase spelling to its canonical term.
var synonyms = buildSynonyms(map[FinancialTerm][]string{
	TermRevenue:  {"revenue", "total revenue", "net revenue", "turnover"},
	TermPAT:      {"pat", "profit after tax", "net profit", "net earnings"},
	TermEBITDA:   {"ebitda", "operating profit", "earnings before interest, tax, depreciation"},
	TermEPS:      {"eps", "earnings per share", "basic eps", "diluted eps"},
	TermDividend: {"dividend", "dividends declared", "dividend payout"},
})

// DefaultTerms is used when the caller asks for no terms at all.
var DefaultTerms = []string{"Revenue", "PAT", "EBITDA"}

func buildSynonyms(table map[FinancialTerm][]string) map[string]FinancialTerm {
	out := make(map[string]FinancialTerm)
	for canonical, variants := range table {
		for _, v := range variants {
			out[v] = canonical
		}
	}
	return out
}

// StandardizeTerm maps one user-supplied term to its canonical form. Unknown
// terms come back uppercased and trimmed.
func StandardizeTerm(term string) FinancialTerm {
	key := strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return FinancialTerm(strings.ToUpper(strings.TrimSpace(term)))
}

// StandardizeTerms maps each term in order. The output has the same length as
// the input.
func StandardizeTerms(terms []string) []FinancialTerm {
	out := make([]FinancialTerm, 0, len(terms))
	for _, t := range terms {
		out = append(out, StandardizeTerm(t))
	}
	return out
}

// ParseTermList splits a comma separated list, dropping blank entries.
func ParseTermList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TermNames converts canonical terms back to plain strings for prompts.
func TermNames(terms []FinancialTerm) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = string(t)
	}
	return out
}
