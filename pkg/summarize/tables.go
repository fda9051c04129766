package summarize

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// metricKeywords mark numeric columns worth ranking a table by when
// compacting. Matched as substrings of the lowercased header.
var metricKeywords = []string{
	"accuracy", "score", "revenue", "latency", "precision", "recall",
	"f1", "throughput", "cost", "price", "performance", "speed",
	"error", "loss", "rate", "count", "total", "percent", "share",
}

// TableCompactor detects pipe-delimited Markdown tables in text and either
// preserves them byte-identical or compacts them to their most salient rows,
// appending a note line with aggregates computed over all rows. Aggregates
// are computed here rather than left to the model so numbers in the note are
// verifiable.
type TableCompactor struct {
	PreserveMaxRows int
	PreserveMaxCols int
	CompactRows     int
	Logger          *slog.Logger
}

func NewTableCompactor(preserveMaxRows, preserveMaxCols, compactRows int) *TableCompactor {
	return &TableCompactor{
		PreserveMaxRows: preserveMaxRows,
		PreserveMaxCols: preserveMaxCols,
		CompactRows:     compactRows,
		Logger:          slog.Default(),
	}
}

// table is one detected pipe table: the original line span plus parsed cells.
type table struct {
	start    int // index of the header line
	end      int // index one past the last data row
	header   []string
	rows     [][]string
	sepLine  string
}

// Process rewrites text so that every oversized table is replaced by its
// compacted form. Small tables and all surrounding text pass through
// unchanged. queryTokens bias the choice of ranking column.
func (t *TableCompactor) Process(text string, queryTokens []string) string {
	lines := strings.Split(text, "\n")

	var out []string
	i := 0
	for i < len(lines) {
		tbl, ok := t.detectTable(lines, i)
		if !ok {
			out = append(out, lines[i])
			i++
			continue
		}

		if len(tbl.rows) <= t.PreserveMaxRows && len(tbl.header) <= t.PreserveMaxCols {
			// Preserved byte-identical.
			out = append(out, lines[tbl.start:tbl.end]...)
		} else {
			t.Logger.Debug("Compacting table",
				"rows", len(tbl.rows), "cols", len(tbl.header))
			out = append(out, t.compact(tbl, queryTokens)...)
		}
		i = tbl.end
	}

	return strings.Join(out, "\n")
}

// detectTable checks whether a table starts at line i: a pipe-delimited
// header immediately followed by a separator line whose cells contain only
// hyphens, colons and whitespace with at least three hyphens each.
func (t *TableCompactor) detectTable(lines []string, i int) (table, bool) {
	if i+1 >= len(lines) {
		return table{}, false
	}
	header := parsePipeRow(lines[i])
	if header == nil {
		return table{}, false
	}
	if !isSeparatorRow(lines[i+1], len(header)) {
		return table{}, false
	}

	tbl := table{start: i, header: header, sepLine: lines[i+1]}
	j := i + 2
	for j < len(lines) {
		row := parsePipeRow(lines[j])
		if row == nil {
			break
		}
		tbl.rows = append(tbl.rows, row)
		j++
	}
	tbl.end = j
	return tbl, true
}

// parsePipeRow splits a "| a | b |" line into trimmed cells. Returns nil if
// the line is not a pipe row.
func parsePipeRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.Contains(trimmed[1:], "|") {
		return nil
	}
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// isSeparatorRow validates a Markdown table separator: every cell composed
// only of '-', ':' and whitespace, each with at least three hyphens.
func isSeparatorRow(line string, cols int) bool {
	cells := parsePipeRow(line)
	if cells == nil || len(cells) != cols {
		return false
	}
	for _, cell := range cells {
		hyphens := 0
		for _, r := range cell {
			switch r {
			case '-':
				hyphens++
			case ':', ' ', '\t':
			default:
				return false
			}
		}
		if hyphens < 3 {
			return false
		}
	}
	return true
}

// parseNumber parses a table cell as a number, tolerating a trailing percent
// sign and comma separators.
func parseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// numericColumns marks a column numeric when at least 60% of its values
// parse as numbers.
func numericColumns(tbl table) []bool {
	numeric := make([]bool, len(tbl.header))
	for col := range tbl.header {
		parsed := 0
		total := 0
		for _, row := range tbl.rows {
			if col >= len(row) {
				continue
			}
			total++
			if _, ok := parseNumber(row[col]); ok {
				parsed++
			}
		}
		numeric[col] = total > 0 && float64(parsed) >= 0.6*float64(total)
	}
	return numeric
}

// compact selects the most salient rows and emits the rewritten table plus a
// note line with aggregates over all rows.
func (t *TableCompactor) compact(tbl table, queryTokens []string) []string {
	numeric := numericColumns(tbl)

	rankCol := t.pickRankColumn(tbl, numeric, queryTokens)

	// Rank rows descending, ties broken by original order.
	type rankedRow struct {
		cells []string
		key   float64
	}
	ranked := make([]rankedRow, len(tbl.rows))
	for i, row := range tbl.rows {
		ranked[i] = rankedRow{cells: row, key: rowKey(row, rankCol, numeric)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].key > ranked[b].key
	})

	k := t.CompactRows
	if k > len(ranked) {
		k = len(ranked)
	}

	selection := "max by numeric sum"
	if rankCol >= 0 {
		selection = "max by " + tbl.header[rankCol]
	}

	out := []string{formatPipeRow(tbl.header), tbl.sepLine}
	for _, r := range ranked[:k] {
		out = append(out, formatPipeRow(r.cells))
	}
	out = append(out, t.noteLine(tbl, numeric, selection, k))
	return out
}

// pickRankColumn returns the index of the numeric column to rank by, or -1
// for the numeric-sum fallback. Metric keywords and query tokens are matched
// against lowercased headers in column order.
func (t *TableCompactor) pickRankColumn(tbl table, numeric []bool, queryTokens []string) int {
	for col, h := range tbl.header {
		if !numeric[col] {
			continue
		}
		lower := strings.ToLower(h)
		for _, kw := range metricKeywords {
			if strings.Contains(lower, kw) {
				return col
			}
		}
		for _, tok := range queryTokens {
			if tok != "" && strings.Contains(lower, tok) {
				return col
			}
		}
	}
	return -1
}

// rowKey is the ranking key for one row: the rank column's value, or the sum
// of all numeric-column values when no rank column was chosen.
func rowKey(row []string, rankCol int, numeric []bool) float64 {
	if rankCol >= 0 {
		if rankCol < len(row) {
			if v, ok := parseNumber(row[rankCol]); ok {
				return v
			}
		}
		return -1e308
	}
	sum := 0.0
	for col, isNum := range numeric {
		if !isNum || col >= len(row) {
			continue
		}
		if v, ok := parseNumber(row[col]); ok {
			sum += v
		}
	}
	return sum
}

// noteLine reports what was kept and per-column aggregates computed over all
// rows, not just the displayed subset.
func (t *TableCompactor) noteLine(tbl table, numeric []bool, selection string, shown int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "> Note: Showing %d of %d rows; selection=%s", shown, len(tbl.rows), selection)

	for col, h := range tbl.header {
		if numeric[col] {
			min, mean, max, ok := columnStats(tbl.rows, col)
			if ok {
				fmt.Fprintf(&sb, "; %s mean=%.2f min=%.2f max=%.2f", h, mean, min, max)
			}
		} else {
			top := topValues(tbl.rows, col, 3)
			if len(top) > 0 {
				fmt.Fprintf(&sb, "; %s top: %s", h, strings.Join(top, ", "))
			}
		}
	}
	return sb.String()
}

// columnStats computes min/mean/max over every parseable value in a column.
func columnStats(rows [][]string, col int) (min, mean, max float64, ok bool) {
	n := 0
	sum := 0.0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v, parsed := parseNumber(row[col])
		if !parsed {
			continue
		}
		if n == 0 || v < min {
			min = v
		}
		if n == 0 || v > max {
			max = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	return min, sum / float64(n), max, true
}

// topValues returns the up-to-n most frequent values of a column, ties
// broken by first occurrence.
func topValues(rows [][]string, col, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, row := range rows {
		if col >= len(row) || row[col] == "" {
			continue
		}
		if _, seen := counts[row[col]]; !seen {
			order = append(order, row[col])
		}
		counts[row[col]]++
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func formatPipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
