package main

import "math"

// RatingSummary holds per-dimension mean scores for one website, each rounded
// to one decimal place.
type RatingSummary struct {
	Overall     float64 `json:"overall"`
	Design      float64 `json:"design"`
	Usability   float64 `json:"usability"`
	Content     float64 `json:"content"`
	Reliability float64 `json:"reliability"`
	Count       int     `json:"count"`
}

// SummarizeRatings averages each rating dimension over the given reviews.
// An empty slice yields all zeros. A dimension whose values are all zero also
// averages to zero; "no data" and "rated zero" are indistinguishable here.
func SummarizeRatings(reviews []Review) RatingSummary {
	summary := RatingSummary{Count: len(reviews)}
	if len(reviews) == 0 {
		return summary
	}

	var overall, design, usability, content, reliability int
	for _, r := range reviews {
		overall += r.RatingOverall
		design += r.RatingDesign
		usability += r.RatingUsability
		content += r.RatingContent
		reliability += r.RatingReliability
	}

	n := float64(len(reviews))
	summary.Overall = roundToTenth(float64(overall) / n)
	summary.Design = roundToTenth(float64(design) / n)
	summary.Usability = roundToTenth(float64(usability) / n)
	summary.Content = roundToTenth(float64(content) / n)
	summary.Reliability = roundToTenth(float64(reliability) / n)

	return summary
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
