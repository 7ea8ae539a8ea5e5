package table

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// RowKind classifies a row in a [Diff].
type RowKind int

const (
	// RowSame is present in both tables.
	RowSame RowKind = iota
	// RowMissing is expected locally but absent from the remote table.
	RowMissing
	// RowSurplus is present in the remote table only.
	RowSurplus
)

func (k RowKind) String() string {
	switch k {
	case RowSame:
		return "same"
	case RowMissing:
		return "missing"
	case RowSurplus:
		return "surplus"
	default:
		return "unknown"
	}
}

func (k RowKind) marker() string {
	switch k {
	case RowMissing:
		return "-"
	case RowSurplus:
		return "+"
	default:
		return " "
	}
}

// Options tunes which differences count.  The zero value is strict about
// rows and missing columns and tolerant of surplus columns.
type Options struct {
	// SurplusCol makes columns that only the remote table has a difference.
	SurplusCol bool
	// AllowMissingRows tolerates rows the remote table lacks.
	AllowMissingRows bool
	// AllowSurplusRows tolerates rows only the remote table has.
	AllowSurplusRows bool
}

// DiffRow is one row of a [Diff], projected onto the shared columns.
type DiffRow struct {
	Kind  RowKind
	Cells []string
}

// Diff is the structural comparison of an expected (local) table with
// an actual (remote) one.
type Diff struct {
	Header      []string
	MissingCols []string
	SurplusCols []string
	Rows        []DiffRow

	different bool
}

// Different reports whether the comparison found a difference that
// counts under the options it was computed with.
func (d *Diff) Different() bool { return d != nil && d.different }

// Diff compares t (expected) against other (actual).  Columns are
// aligned by header name, so a pure column reordering is not a
// difference; rows are aligned with a longest-common-subsequence walk.
func (t *Table) Diff(other *Table, opts Options) *Diff {
	if cmp.Equal(t.Raw(), other.Raw()) {
		d := &Diff{Header: t.Header()}
		for _, r := range t.Body() {
			d.Rows = append(d.Rows, DiffRow{Kind: RowSame, Cells: r})
		}
		return d
	}

	localIdx, remoteIdx, d := alignColumns(t.Header(), other.Header())
	local := project(t.Body(), localIdx)
	remote := project(other.Body(), remoteIdx)
	d.Rows = lcsRows(local, remote)

	d.different = len(d.MissingCols) > 0 || (opts.SurplusCol && len(d.SurplusCols) > 0)
	for _, r := range d.Rows {
		switch {
		case r.Kind == RowMissing && !opts.AllowMissingRows,
			r.Kind == RowSurplus && !opts.AllowSurplusRows:
			d.different = true
		}
	}
	return d
}

// alignColumns returns, for each shared column in local order, its index
// in the local and remote headers.
func alignColumns(local, remote []string) (li, ri []int, d *Diff) {
	d = &Diff{}
	remotePos := make(map[string]int, len(remote))
	for i, name := range remote {
		if _, dup := remotePos[name]; !dup {
			remotePos[name] = i
		}
	}
	seen := make(map[string]bool, len(local))
	for i, name := range local {
		seen[name] = true
		j, ok := remotePos[name]
		if !ok {
			d.MissingCols = append(d.MissingCols, name)
			continue
		}
		d.Header = append(d.Header, name)
		li = append(li, i)
		ri = append(ri, j)
	}
	for _, name := range remote {
		if !seen[name] {
			d.SurplusCols = append(d.SurplusCols, name)
		}
	}
	return li, ri, d
}

func project(rows [][]string, idx []int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		p := make([]string, len(idx))
		for k, j := range idx {
			if j < len(r) {
				p[k] = r[j]
			}
		}
		out[i] = p
	}
	return out
}

func rowsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lcsRows(a, b [][]string) []DiffRow {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if rowsEqual(a[i], b[j]) {
				dp[i][j] = dp[i+1][j+1] + 1
			} else {
				dp[i][j] = max(dp[i+1][j], dp[i][j+1])
			}
		}
	}

	out := make([]DiffRow, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case rowsEqual(a[i], b[j]):
			out = append(out, DiffRow{Kind: RowSame, Cells: a[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			out = append(out, DiffRow{Kind: RowMissing, Cells: a[i]})
			i++
		default:
			out = append(out, DiffRow{Kind: RowSurplus, Cells: b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, DiffRow{Kind: RowMissing, Cells: a[i]})
	}
	for ; j < m; j++ {
		out = append(out, DiffRow{Kind: RowSurplus, Cells: b[j]})
	}
	return out
}

// String renders the diff as an aligned pipe table.  Missing rows are
// prefixed with "-", surplus rows with "+".
func (d *Diff) String() string {
	if d == nil {
		return ""
	}
	widths := make([]int, len(d.Header))
	for i, h := range d.Header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range d.Rows {
		for i, c := range r.Cells {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(c))
			}
		}
	}

	var b strings.Builder
	writeRow(&b, " ", d.Header, widths)
	for _, r := range d.Rows {
		writeRow(&b, r.Kind.marker(), r.Cells, widths)
	}
	if len(d.MissingCols) > 0 {
		fmt.Fprintf(&b, "missing columns: %s\n", strings.Join(d.MissingCols, ", "))
	}
	if len(d.SurplusCols) > 0 {
		fmt.Fprintf(&b, "surplus columns: %s\n", strings.Join(d.SurplusCols, ", "))
	}
	return b.String()
}

func writeRow(b *strings.Builder, marker string, cells []string, widths []int) {
	b.WriteString(marker)
	b.WriteString(" |")
	for i, w := range widths {
		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		b.WriteString(" ")
		b.WriteString(c)
		b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(c)))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
