package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
)

var (
	maxPainStyle = color.New(color.BgRed, color.FgHiWhite, color.Bold)
	atmStyle     = color.New(color.BgBlue, color.FgHiWhite)
	headerStyle  = color.New(color.Bold, color.Underline)
)

func styled(h dashboard.Highlight, line string) string {
	switch h {
	case dashboard.HighlightMaxPain:
		return maxPainStyle.Sprint(line)
	case dashboard.HighlightATM:
		return atmStyle.Sprint(line)
	default:
		return line
	}
}

func intCell(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func floatCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func legCells(l dashboard.LegView) []string {
	return []string{
		floatCell(l.LTP), floatCell(l.OI), floatCell(l.Volume),
		intCell(l.IV), intCell(l.Delta), intCell(l.Gamma), intCell(l.Vega),
	}
}

func row(widths []int, cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%*s", widths[i], c)
	}
	return b.String()
}

func renderBoard(w io.Writer, b *dashboard.Board) {
	spot := "-"
	if b.Spot != nil {
		spot = floatCell(b.Spot)
		if b.PctChange != nil {
			spot += fmt.Sprintf(" (%+.2f%%)", *b.PctChange)
		}
	}
	fmt.Fprintf(w, "%s  expiry %s  spot %s  max pain %g\n\n", b.Underlying, b.Expiry, spot, b.MaxPainStrike)

	header := []string{
		"CE LTP", "CE OI", "CE Vol", "CE IV", "CE Delta", "CE Gamma", "CE Vega",
		"Strike", "Max Pain",
		"PE LTP", "PE OI", "PE Vol", "PE IV", "PE Delta", "PE Gamma", "PE Vega",
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = max(len(h), 10)
	}
	fmt.Fprintln(w, headerStyle.Sprint(row(widths, header)))

	for _, r := range b.Rows {
		cells := legCells(r.CE)
		cells = append(cells, floatCell(&r.Strike), strconv.FormatInt(r.MaxPain, 10))
		cells = append(cells, legCells(r.PE)...)
		fmt.Fprintln(w, styled(r.Highlight, row(widths, cells)))
	}
}

func renderComparison(w io.Writer, c *dashboard.Comparison) {
	fmt.Fprintf(w, "%s  spot %s  now %s  t1 %s  t2 %s\n\n", c.Underlying, floatCell(c.Spot), c.Now, c.T1, c.T2)

	header := []string{"Strike", "MP " + c.Now, "MP " + c.T1, "MP " + c.T2, "Live-T1", "T1-T2", "Delta2"}
	widths := []int{10, 10, 10, 10, 10, 10, 10}
	fmt.Fprintln(w, headerStyle.Sprint(row(widths, header)))

	for _, r := range c.Rows {
		cells := []string{
			floatCell(&r.Strike), intCell(r.Live), intCell(r.T1), intCell(r.T2),
			intCell(r.DeltaLive), intCell(r.DeltaT1T2), intCell(r.DeltaDelta),
		}
		fmt.Fprintln(w, styled(r.Highlight, row(widths, cells)))
	}
}

func renderIV(w io.Writer, c *dashboard.IVComparison) {
	fmt.Fprintf(w, "%s IV  spot %s  t1 %s  t2 %s\n\n", c.Underlying, floatCell(c.Spot), c.T1, c.T2)

	header := []string{"Strike", "CE Live-T1", "CE T1-T2", "PE Live-T1", "PE T1-T2"}
	widths := []int{10, 10, 10, 10, 10}
	fmt.Fprintln(w, headerStyle.Sprint(row(widths, header)))

	for _, r := range c.Rows {
		cells := []string{floatCell(&r.Strike), floatCell(r.CELiveT1), floatCell(r.CET1T2), floatCell(r.PELiveT1), floatCell(r.PET1T2)}
		fmt.Fprintln(w, styled(r.Highlight, row(widths, cells)))
	}
}
