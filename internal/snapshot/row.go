package snapshot

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
)

// TimestampLayout is the minute-resolution timestamp written with each row.
const TimestampLayout = "2006-01-02 15:04"

// Row is one strike of one snapshot. Nil fields are written as empty cells.
type Row struct {
	Strike    float64  `csv:"Strike" db:"strike" json:"strike"`
	CELTP     *float64 `csv:"CE LTP,omitempty" db:"ce_ltp" json:"ce_ltp"`
	CEOI      *float64 `csv:"CE OI,omitempty" db:"ce_oi" json:"ce_oi"`
	CEVolume  *float64 `csv:"CE Volume,omitempty" db:"ce_volume" json:"ce_volume"`
	CEIV      *float64 `csv:"CE IV,omitempty" db:"ce_iv" json:"ce_iv"`
	CEDelta   *float64 `csv:"CE Delta,omitempty" db:"ce_delta" json:"ce_delta"`
	CEGamma   *float64 `csv:"CE Gamma,omitempty" db:"ce_gamma" json:"ce_gamma"`
	CEVega    *float64 `csv:"CE Vega,omitempty" db:"ce_vega" json:"ce_vega"`
	PELTP     *float64 `csv:"PE LTP,omitempty" db:"pe_ltp" json:"pe_ltp"`
	PEOI      *float64 `csv:"PE OI,omitempty" db:"pe_oi" json:"pe_oi"`
	PEVolume  *float64 `csv:"PE Volume,omitempty" db:"pe_volume" json:"pe_volume"`
	PEIV      *float64 `csv:"PE IV,omitempty" db:"pe_iv" json:"pe_iv"`
	PEDelta   *float64 `csv:"PE Delta,omitempty" db:"pe_delta" json:"pe_delta"`
	PEGamma   *float64 `csv:"PE Gamma,omitempty" db:"pe_gamma" json:"pe_gamma"`
	PEVega    *float64 `csv:"PE Vega,omitempty" db:"pe_vega" json:"pe_vega"`
	Expiry    string   `csv:"Expiry" db:"expiry" json:"expiry"`
	Timestamp string   `csv:"timestamp" db:"timestamp" json:"timestamp"`
	MaxPain   *float64 `csv:"Max Pain,omitempty" db:"max_pain" json:"max_pain"`
}

// Header is the column order of the history files.
var Header = []string{
	"Strike",
	"CE LTP", "CE OI", "CE Volume", "CE IV", "CE Delta", "CE Gamma", "CE Vega",
	"PE LTP", "PE OI", "PE Volume", "PE IV", "PE Delta", "PE Gamma", "PE Vega",
	"Expiry", "timestamp", "Max Pain",
}

func ptr[T any](v T) *T {
	return &v
}

// FromChain converts every strike of c into a row. maxPain must be aligned
// with c.Strikes; a nil slice leaves the column empty.
func FromChain(c *chain.Chain, maxPain []float64, ts time.Time) []Row {
	stamp := ts.Format(TimestampLayout)
	rows := make([]Row, len(c.Strikes))
	for i, s := range c.Strikes {
		r := Row{
			Strike:    s.Price,
			Expiry:    c.Expiry,
			Timestamp: stamp,
		}
		if l := s.Call; l != nil {
			r.CELTP, r.CEOI, r.CEVolume = ptr(l.LTP), ptr(l.OI), ptr(l.Volume)
			r.CEIV, r.CEDelta, r.CEGamma, r.CEVega = ptr(l.IV), ptr(l.Greeks.Delta), ptr(l.Greeks.Gamma), ptr(l.Greeks.Vega)
		}
		if l := s.Put; l != nil {
			r.PELTP, r.PEOI, r.PEVolume = ptr(l.LTP), ptr(l.OI), ptr(l.Volume)
			r.PEIV, r.PEDelta, r.PEGamma, r.PEVega = ptr(l.IV), ptr(l.Greeks.Delta), ptr(l.Greeks.Gamma), ptr(l.Greeks.Vega)
		}
		if i < len(maxPain) {
			r.MaxPain = ptr(maxPain[i])
		}
		rows[i] = r
	}
	return rows
}

// TimeKey reduces a timestamp to its HH:MM suffix so snapshots taken on
// different days at the same minute compare equal.
func TimeKey(ts string) string {
	ts = strings.TrimSpace(ts)
	if len(ts) <= 5 {
		return ts
	}
	return ts[len(ts)-5:]
}

// Times returns the distinct time keys of rows.
func Times(rows []Row) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range rows {
		if r.Timestamp == "" {
			continue
		}
		out[TimeKey(r.Timestamp)] = struct{}{}
	}
	return out
}

// CommonTimes returns the time keys present in every history, newest first.
func CommonTimes(histories ...[]Row) []string {
	if len(histories) == 0 {
		return nil
	}
	common := Times(histories[0])
	for _, h := range histories[1:] {
		other := Times(h)
		for k := range common {
			if _, ok := other[k]; !ok {
				delete(common, k)
			}
		}
	}

	out := make([]string, 0, len(common))
	for k := range common {
		out = append(out, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Field selects one nullable column of a row.
type Field func(Row) *float64

var (
	FieldMaxPain Field = func(r Row) *float64 { return r.MaxPain }
	FieldCEIV    Field = func(r Row) *float64 { return r.CEIV }
	FieldPEIV    Field = func(r Row) *float64 { return r.PEIV }
)

// MeanByStrike averages field over the rows taken at timeKey, grouped by
// strike. Empty cells are skipped; a strike with no values is absent.
func MeanByStrike(rows []Row, timeKey string, field Field) map[float64]float64 {
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for _, r := range rows {
		if TimeKey(r.Timestamp) != timeKey {
			continue
		}
		v := field(r)
		if v == nil || math.IsNaN(*v) {
			continue
		}
		sums[r.Strike] += *v
		counts[r.Strike]++
	}

	out := make(map[float64]float64, len(sums))
	for k, s := range sums {
		out[k] = s / float64(counts[k])
	}
	return out
}

// Strikes returns the distinct strikes of rows in ascending order.
func Strikes(rows []Row) []float64 {
	seen := make(map[float64]struct{})
	out := make([]float64, 0)
	for _, r := range rows {
		if _, ok := seen[r.Strike]; ok {
			continue
		}
		seen[r.Strike] = struct{}{}
		out = append(out, r.Strike)
	}
	sort.Float64s(out)
	return out
}
