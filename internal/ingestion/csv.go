package ingestion

import (
	"fmt"
	"strings"

	"github.com/pinjamly/ledger/internal/domain"
)

// ParseResult is the outcome of parsing one bank export. Parse problems never
// abort the whole file: fatal-for-a-field issues land in Errors, per-row
// issues in Warnings, and whatever rows were salvageable in Transactions.
type ParseResult struct {
	Format       string                  `json:"format"`
	Transactions []domain.RawTransaction `json:"transactions"`
	Warnings     []string                `json:"warnings"`
	Errors       []string                `json:"errors"`
}

// ParseStatement parses arbitrary bank-export text into normalized rows.
// Banks disagree on delimiters, header names, quoting and amount formatting,
// so the parser sniffs all of it: line endings are normalized, the delimiter
// is chosen by column count of the first non-blank line, the header is
// matched against the bank format registry, and amounts go through the
// format's own parser.
func ParseStatement(data []byte) *ParseResult {
	res := &ParseResult{
		Transactions: []domain.RawTransaction{},
		Warnings:     []string{},
		Errors:       []string{},
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start >= len(lines) {
		res.Errors = append(res.Errors, "statement is empty")
		return res
	}

	delim := detectDelimiter(lines[start])

	header := splitLine(lines[start], delim)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	format := detectFormat(header)
	res.Format = format.Name

	cols := resolveFormatColumns(format, header)
	if cols.reference < 0 && cols.refPrimary < 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("cannot resolve a reference column in header %q", strings.Join(header, ",")))
	}
	if cols.amount < 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("cannot resolve an amount column in header %q", strings.Join(header, ",")))
	}

	for lineNum := start + 1; lineNum < len(lines); lineNum++ {
		line := lines[lineNum]
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitLine(line, delim)
		row := domain.NewRowData()
		for i, h := range header {
			if i < len(fields) {
				row.Set(h, strings.TrimSpace(fields[i]))
			} else {
				row.Set(h, "")
			}
		}

		tx := domain.RawTransaction{RawRowData: row}
		tx.ReferenceCode = resolveReference(cols, fields)
		if cols.beneficiary >= 0 && cols.beneficiary < len(fields) {
			tx.BeneficiaryName = strings.TrimSpace(fields[cols.beneficiary])
		}

		var amountRaw string
		if cols.amount >= 0 && cols.amount < len(fields) {
			amountRaw = strings.TrimSpace(fields[cols.amount])
		}

		parseFailed := false
		if amountRaw != "" {
			amount, err := format.ParseAmount(amountRaw)
			if err != nil {
				parseFailed = true
			} else {
				tx.Amount = amount
			}
		}

		// A row with no reference, no beneficiary and no amount carries no
		// information: drop it without comment. Noise rows like section
		// separators and balance footers look exactly like this.
		if tx.ReferenceCode == "" && tx.BeneficiaryName == "" && tx.Amount == 0 {
			continue
		}

		if parseFailed {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: unparseable amount %q, defaulting to 0", lineNum+1, amountRaw))
		}

		res.Transactions = append(res.Transactions, tx)
	}

	return res
}

// detectDelimiter picks the candidate producing the most columns on the
// header line. Ties resolve by candidate priority: comma, then semicolon,
// then tab.
func detectDelimiter(line string) rune {
	candidates := []rune{',', ';', '\t'}
	best := candidates[0]
	bestCount := len(splitLine(line, best))
	for _, c := range candidates[1:] {
		if n := len(splitLine(line, c)); n > bestCount {
			best = c
			bestCount = n
		}
	}
	return best
}

// splitLine tokenizes one line. Quoted fields may contain the delimiter, and
// a doubled quote inside a quoted field is a literal quote. encoding/csv is
// too strict for real bank exports (stray quotes, ragged rows), hence the
// hand-rolled version.
func splitLine(line string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
