package csv

import "strings"

const delimiterSampleLines = 10

// candidates in tie-break order; supplier exports from ru-locale office
// suites use ';' because ',' is the decimal separator.
var candidates = []CsvDelimiter{DelimiterSemicolon, DelimiterTab, DelimiterComma}

// DetectDelimiter picks the candidate that splits the most sample lines
// into the same number of fields, preferring more fields on a tie.
func DetectDelimiter(content string) CsvDelimiter {
	var sample []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sample = append(sample, line)
		}
		if len(sample) == delimiterSampleLines {
			break
		}
	}

	best, bestLines, bestCount := DelimiterSemicolon, 0, 0
	for _, d := range candidates {
		r := []rune(string(d))[0]
		freq := make(map[int]int)
		for _, line := range sample {
			if n := countOutsideQuotes(line, r, '"'); n > 0 {
				freq[n]++
			}
		}
		for count, lines := range freq {
			if lines > bestLines || (lines == bestLines && count > bestCount) {
				best, bestLines, bestCount = d, lines, count
			}
		}
	}
	return best
}

func countOutsideQuotes(line string, delim, quote rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == quote:
			quoted = !quoted
		case r == delim && !quoted:
			n++
		}
	}
	return n
}

// SplitCSVLine splits one line on delimiter. Quoted fields may contain the
// delimiter; a doubled quote inside them is a literal quote.
func SplitCSVLine(line string, delimiter, quote rune) []string {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
		prevQ  bool
	)
	for _, r := range line {
		if quoted {
			if r == quote {
				quoted, prevQ = false, true
				continue
			}
			cur.WriteRune(r)
			continue
		}
		switch r {
		case quote:
			if prevQ {
				cur.WriteRune(quote)
			}
			quoted, prevQ = true, false
		case delimiter:
			fields = append(fields, cur.String())
			cur.Reset()
			prevQ = false
		default:
			cur.WriteRune(r)
			prevQ = false
		}
	}
	return append(fields, cur.String())
}
