package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
)

func init() {
	color.NoColor = true
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestRenderBoard(t *testing.T) {
	b := &dashboard.Board{
		Underlying:    "NIFTY",
		Expiry:        "2025-01-30",
		Spot:          f64(23010.5),
		PctChange:     f64(-0.42),
		MaxPainStrike: 23000,
		Rows: []dashboard.LiveRow{
			{Strike: 23000, MaxPain: 4, Highlight: dashboard.HighlightMaxPain, CE: dashboard.LegView{LTP: f64(80.46), IV: i64(1250)}},
			{Strike: 23050, MaxPain: 5, Highlight: dashboard.HighlightATM},
		},
	}

	var buf bytes.Buffer
	renderBoard(&buf, b)
	out := buf.String()

	if !strings.Contains(out, "spot 23010.5 (-0.42%)") {
		t.Errorf("expected spot summary, got:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// summary, blank, header, two rows
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "80.46") || !strings.Contains(lines[3], "1250") {
		t.Errorf("unexpected max pain row %q", lines[3])
	}
	if !strings.Contains(lines[4], "-") {
		t.Errorf("missing values should render as '-', got %q", lines[4])
	}
}

func TestRenderComparison(t *testing.T) {
	c := &dashboard.Comparison{
		Underlying: "BANKNIFTY",
		Now:        "10:02",
		T1:         "10:00",
		T2:         "09:55",
		Rows: []dashboard.CompareRow{
			{Strike: 48000, Live: i64(12), T1: i64(15), T2: i64(14), DeltaLive: i64(-3), DeltaT1T2: i64(1)},
		},
	}

	var buf bytes.Buffer
	renderComparison(&buf, c)
	out := buf.String()

	for _, want := range []string{"MP 10:02", "MP 09:55", "48000", "-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderIV(t *testing.T) {
	c := &dashboard.IVComparison{
		Underlying: "NIFTY",
		T1:         "10:00",
		T2:         "09:55",
		Rows:       []dashboard.IVRow{{Strike: 23000, CELiveT1: f64(1.5), PET1T2: f64(-0.3)}},
	}

	var buf bytes.Buffer
	renderIV(&buf, c)
	if out := buf.String(); !strings.Contains(out, "1.5") || !strings.Contains(out, "-0.3") {
		t.Errorf("unexpected IV output:\n%s", out)
	}
}
