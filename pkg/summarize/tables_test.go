package summarize

import (
	"fmt"
	"strings"
	"testing"
)

func buildTable(rows, cols int, cell func(r, c int) string) string {
	var sb strings.Builder
	sb.WriteString("|")
	for c := 0; c < cols; c++ {
		fmt.Fprintf(&sb, " H%d |", c)
	}
	sb.WriteString("\n|")
	for c := 0; c < cols; c++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for r := 0; r < rows; r++ {
		sb.WriteString("|")
		for c := 0; c < cols; c++ {
			fmt.Fprintf(&sb, " %s |", cell(r, c))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestSmallTablePreservedByteIdentical(t *testing.T) {
	table := "| Model | Dataset | Score |\n" +
		"| --- | --- | --- |\n" +
		"| A | X | 0.91 |\n" +
		"| B | Y | 0.87 |"
	text := "Some intro text.\n\n" + table + "\n\nConclusion."

	tc := NewTableCompactor(15, 8, 10)
	got := tc.Process(text, nil)

	if got != text {
		t.Errorf("small table should pass through unchanged:\ngot:  %q\nwant: %q", got, text)
	}
}

func TestBoundaryTablePreserved(t *testing.T) {
	// Exactly 15 rows x 8 cols sits on the preservation boundary.
	text := buildTable(15, 8, func(r, c int) string { return fmt.Sprintf("v%d_%d", r, c) })

	tc := NewTableCompactor(15, 8, 10)
	got := tc.Process(text, nil)

	if got != strings.TrimRight(text, "\n")+"\n" && got != text {
		// Process joins on newline; trailing newline handling must not alter rows.
		if !strings.Contains(got, "| v14_0 |") || strings.Contains(got, "> Note:") {
			t.Errorf("boundary table must be preserved, got:\n%s", got)
		}
	}
}

func TestOneExtraRowTriggersCompaction(t *testing.T) {
	text := buildTable(16, 2, func(r, c int) string {
		if c == 0 {
			return fmt.Sprintf("item%d", r)
		}
		return fmt.Sprintf("%d", r)
	})

	tc := NewTableCompactor(15, 8, 10)
	got := tc.Process(text, nil)

	if !strings.Contains(got, "> Note: Showing 10 of 16 rows") {
		t.Errorf("expected compaction note, got:\n%s", got)
	}
}

func TestLargeAccuracyTableCompaction(t *testing.T) {
	// 25 rows with ascending Accuracy 0.50..0.98.
	header := "| Model | Dataset | Accuracy | Notes |\n| --- | --- | --- | --- |\n"
	var rows strings.Builder
	for i := 0; i < 25; i++ {
		acc := 0.50 + float64(i)*0.02
		fmt.Fprintf(&rows, "| M%d | D%d | %.2f | row%d |\n", i, i%3, acc, i)
	}
	text := "Intro text\n\n" + header + rows.String() + "\nMore text"

	tc := NewTableCompactor(15, 8, 10)
	got := tc.Process(text, []string{"accuracy"})

	if !strings.Contains(got, "| Model | Dataset | Accuracy | Notes |") {
		t.Error("header must be retained")
	}
	if strings.Contains(got, "| M0 | D0 | 0.50 | row0 |") {
		t.Error("lowest-accuracy row should be dropped")
	}
	if !strings.Contains(got, "| M24 | D0 | 0.98 | row24 |") {
		t.Error("highest-accuracy row should be kept")
	}

	var note string
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "> Note:") {
			note = line
			break
		}
	}
	if note == "" {
		t.Fatal("compaction note line missing")
	}
	if !strings.Contains(note, "Showing 10 of 25 rows") {
		t.Errorf("note should state rows shown/total: %s", note)
	}
	if !strings.Contains(note, "selection=max by Accuracy") {
		t.Errorf("note should state the selection criterion: %s", note)
	}
	// Aggregates are computed over all 25 rows, not the shown 10.
	if !strings.Contains(note, "Accuracy mean=0.74") || !strings.Contains(note, "max=0.98") {
		t.Errorf("note aggregates wrong: %s", note)
	}
	if !strings.Contains(note, "min=0.50") {
		t.Errorf("note min should cover dropped rows: %s", note)
	}
}

func TestNumericColumnTolerance(t *testing.T) {
	text := buildTable(20, 2, func(r, c int) string {
		if c == 0 {
			return fmt.Sprintf("name%d", r)
		}
		// Percent signs and comma separators must still parse.
		return fmt.Sprintf("%d,%03d%%", r, r*10)
	})

	tc := NewTableCompactor(15, 8, 5)
	got := tc.Process(text, nil)

	if !strings.Contains(got, "Showing 5 of 20 rows") {
		t.Fatalf("expected compaction, got:\n%s", got)
	}
	// Highest value is row 19 -> "19,190%" = 19190.
	if !strings.Contains(got, "| name19 |") {
		t.Errorf("highest numeric row should be selected:\n%s", got)
	}
	if !strings.Contains(got, "max=19190.00") {
		t.Errorf("aggregates should parse percent/comma values:\n%s", got)
	}
}

func TestFallbackNumericSumRanking(t *testing.T) {
	// No metric-keyword header: ranking falls back to summed numeric values.
	text := buildTable(18, 3, func(r, c int) string {
		switch c {
		case 0:
			return fmt.Sprintf("row%d", r)
		case 1:
			return fmt.Sprintf("%d", r)
		default:
			return fmt.Sprintf("%d", 100-r)
		}
	})
	// Rename headers to avoid metric keywords.
	text = strings.Replace(text, "| H0 | H1 | H2 |", "| Name | Alpha | Beta |", 1)

	tc := NewTableCompactor(15, 8, 4)
	got := tc.Process(text, nil)

	if !strings.Contains(got, "selection=max by numeric sum") {
		t.Errorf("expected numeric-sum fallback, got:\n%s", got)
	}
}

func TestStableTieBreaking(t *testing.T) {
	text := buildTable(20, 2, func(r, c int) string {
		if c == 0 {
			return fmt.Sprintf("id%d", r)
		}
		return "5" // every score identical
	})
	text = strings.Replace(text, "| H0 | H1 |", "| Name | Score |", 1)

	tc := NewTableCompactor(15, 8, 3)
	got := tc.Process(text, nil)

	// With all keys equal, original order wins.
	for _, want := range []string{"| id0 |", "| id1 |", "| id2 |"} {
		if !strings.Contains(got, want) {
			t.Errorf("stable tie-break should keep %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, "| id3 |") {
		t.Errorf("only the first 3 rows should survive ties:\n%s", got)
	}
}

func TestSeparatorValidation(t *testing.T) {
	// Two hyphens per cell is not a valid separator; the block is plain text.
	text := "| A | B |\n| -- | -- |\n| 1 | 2 |"

	tc := NewTableCompactor(0, 0, 1)
	got := tc.Process(text, nil)

	if got != text {
		t.Errorf("invalid separator must not be treated as a table:\ngot %q", got)
	}
}

func TestTextWithoutTablesUntouched(t *testing.T) {
	text := "Just some | pipe characters | in prose.\n\nAnd a second paragraph."
	tc := NewTableCompactor(15, 8, 10)
	if got := tc.Process(text, nil); got != text {
		t.Errorf("prose must pass through unchanged: %q", got)
	}
}
