package aggregate

import (
	"fmt"

	"github.com/efebarandurmaz/apistat/internal/classify"
)

// Row holds the metrics of one group. Every field is an integer count;
// averages and ratios are derived on demand.
type Row struct {
	Category classify.Category `json:"category"`
	Key      string            `json:"key,omitempty"`

	Count      int `json:"count"`
	Public     int `json:"public"`
	Deprecated int `json:"deprecated"`
	Unstable   int `json:"unstable"`
	Documented int `json:"documented"`
	// Generic counts items with at least one generic parameter or bound,
	// including those inherited from an enclosing trait or impl.
	Generic    int `json:"generic"`
	GenericSum int `json:"generic_sum"`
	Const      int `json:"const"`
	Async      int `json:"async"`
	Unsafe     int `json:"unsafe"`
	Methods    int `json:"methods"`
}

func (r *Row) add(rec *classify.Record) {
	r.Count++
	if rec.Public() {
		r.Public++
	}
	switch rec.Stability {
	case classify.StabilityDeprecated:
		r.Deprecated++
	case classify.StabilityUnstable:
		r.Unstable++
	}
	if rec.Documented {
		r.Documented++
	}
	if rec.HasGenerics {
		r.Generic++
	}
	r.GenericSum += rec.Generics
	if rec.Const {
		r.Const++
	}
	if rec.Async {
		r.Async++
	}
	if rec.Unsafe {
		r.Unsafe++
	}
	r.Methods += rec.Methods
}

// AvgGenerics is GenericSum / Count, or 0 for an empty row.
func (r Row) AvgGenerics() float64 {
	return Ratio{Num: r.GenericSum, Den: r.Count}.Float()
}

// PublicRatio is Public / Count.
func (r Row) PublicRatio() Ratio { return Ratio{Num: r.Public, Den: r.Count} }

// DocumentedRatio is Documented / Count.
func (r Row) DocumentedRatio() Ratio { return Ratio{Num: r.Documented, Den: r.Count} }

// DeprecatedRatio is Deprecated / Count.
func (r Row) DeprecatedRatio() Ratio { return Ratio{Num: r.Deprecated, Den: r.Count} }

// UnstableRatio is Unstable / Count.
func (r Row) UnstableRatio() Ratio { return Ratio{Num: r.Unstable, Den: r.Count} }

// Ratio is a fraction of two counts.
type Ratio struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Float returns Num/Den, or 0 when Den is 0.
func (r Ratio) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Percent returns the ratio as a percentage.
func (r Ratio) Percent() float64 { return 100 * r.Float() }

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", r.Num, r.Den, r.Percent())
}
