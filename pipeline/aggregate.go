package pipeline

import (
	"sort"
	"strconv"

	"github.com/aluiziolira/cbp-establishments/models"
)

// Aggregate merges every cell into one entry per county.
//
// Cells are visited by ascending year, then catalogue order, then any codes
// outside the catalogue sorted. A county's name is the one seen last in that
// order. Counties absent from every cell do not appear.
func Aggregate(raw models.CrossProductResult) models.Processed {
	out := make(models.Processed)

	for _, year := range raw.Years() {
		yearKey := strconv.Itoa(year)
		cells := raw[year]
		for _, code := range industryOrder(cells) {
			for _, record := range cells[code] {
				county, ok := out[record.CountyID]
				if !ok {
					county = &models.ProcessedCounty{Series: make(map[models.IndustryCode]map[string]int)}
					out[record.CountyID] = county
				}
				county.Name = record.Name

				series, ok := county.Series[code]
				if !ok {
					series = make(map[string]int)
					county.Series[code] = series
				}
				series[yearKey] = record.Establishments
			}
		}
	}
	return out
}

func industryOrder(cells map[models.IndustryCode][]models.CountyRecord) []models.IndustryCode {
	order := make([]models.IndustryCode, 0, len(cells))
	known := make(map[models.IndustryCode]struct{}, len(cells))
	for _, industry := range models.Industries() {
		if _, ok := cells[industry.Code]; ok {
			order = append(order, industry.Code)
			known[industry.Code] = struct{}{}
		}
	}

	var extra []models.IndustryCode
	for code := range cells {
		if _, ok := known[code]; !ok {
			extra = append(extra, code)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}
