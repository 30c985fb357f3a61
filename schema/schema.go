// Package schema maps survey years to the NAICS variable the CBP API filters on.
package schema

// Fallback is used for years outside every range. It names the most recent standard.
const Fallback = "NAICS2017"

// Range covers years in [From, To).
type Range struct {
	From     int
	To       int
	Variable string
}

func (r Range) Contains(year int) bool {
	return year >= r.From && year < r.To
}

// Table is an ordered list of disjoint ranges.
type Table []Range

// Default mirrors the NAICS revisions used by CBP releases.
var Default = Table{
	{From: 1998, To: 2003, Variable: "NAICS1997"},
	{From: 2003, To: 2008, Variable: "NAICS2002"},
	{From: 2008, To: 2012, Variable: "NAICS2007"},
	{From: 2012, To: 2017, Variable: "NAICS2012"},
	{From: 2017, To: 2022, Variable: "NAICS2017"},
	// 2022 and 2023 releases still classify by NAICS2017.
	{From: 2022, To: 2024, Variable: "NAICS2017"},
}

// Resolve returns the variable of the first range containing year, or Fallback.
func (t Table) Resolve(year int) string {
	for _, r := range t {
		if r.Contains(year) {
			return r.Variable
		}
	}
	return Fallback
}

// Resolve looks year up in the Default table.
func Resolve(year int) string {
	return Default.Resolve(year)
}
