// internal/scoring/structural.go
package scoring

import (
	"math"

	"familyski-workers/internal/models"
)

// Category weights for the structural score. Childcare and ski school
// dominate because they are the attributes families filter on first.
const (
	weightChildcare   = 0.25
	weightSkiSchool   = 0.25
	weightTerrain     = 0.20
	weightCost        = 0.15
	weightConvenience = 0.15
)

// neutralScore is what an absent attribute contributes. Missing data is
// never evidence of a bad resort, only of an unresearched one, so it must
// land between the best and worst band of every attribute.
const neutralScore = 5.0

// CalculateStructuralScore computes the deterministic family-fit score
// [0,10] from structured resort attributes. Every FamilyMetrics field is
// optional; a zero value scores exactly 5.0. The function never fails and
// performs no I/O.
func CalculateStructuralScore(m models.FamilyMetrics) float64 {
	childcare := average(
		scoreBool(m.HasChildcare, 10, 2),
		scoreBool(m.KidsEquipmentRental, 9, 3),
	)

	skiSchool := average(
		scoreMinSkiSchoolAge(m.MinSkiSchoolAge),
		scoreBool(m.HasMagicCarpet, 9, 4),
	)

	terrain := average(
		scoreBeginnerTerrain(m.BeginnerTerrainPct),
		scoreBool(m.NightSkiing, 7, 5),
	)

	cost := scoreDayPass(m.AvgDayPassUSD)

	convenience := average(
		scoreTransferTime(m.TransferTimeMinutes),
		scoreBool(m.FamilyLodgingOnSlope, 9, 4),
	)

	total := weightChildcare*childcare +
		weightSkiSchool*skiSchool +
		weightTerrain*terrain +
		weightCost*cost +
		weightConvenience*convenience

	return clampScore(total)
}

// CalculateDataCompleteness returns the fraction [0,1] of FamilyMetrics
// fields that are populated. The research worker uses it to prioritize
// which resorts need another pass; it never feeds the composite.
func CalculateDataCompleteness(m models.FamilyMetrics) float64 {
	present := 0
	if m.HasChildcare != nil {
		present++
	}
	if m.KidsEquipmentRental != nil {
		present++
	}
	if m.MinSkiSchoolAge != nil {
		present++
	}
	if m.HasMagicCarpet != nil {
		present++
	}
	if m.BeginnerTerrainPct != nil {
		present++
	}
	if m.AvgDayPassUSD != nil {
		present++
	}
	if m.TransferTimeMinutes != nil {
		present++
	}
	if m.FamilyLodgingOnSlope != nil {
		present++
	}
	if m.BestAgeRange != nil {
		present++
	}
	if m.NightSkiing != nil {
		present++
	}
	return float64(present) / float64(models.FamilyMetricsFieldCount)
}

// scoreBool maps a tri-state boolean attribute onto the score scale.
func scoreBool(v *bool, yes, no float64) float64 {
	if v == nil {
		return neutralScore
	}
	if *v {
		return yes
	}
	return no
}

// scoreMinSkiSchoolAge rewards resorts that take younger children. Ages
// are banded rather than interpolated so small data errors don't move the
// score.
func scoreMinSkiSchoolAge(age *int) float64 {
	if age == nil {
		return neutralScore
	}
	switch {
	case *age <= 3:
		return 10
	case *age <= 5:
		return 8
	case *age <= 7:
		return 6
	case *age <= 9:
		return 4
	default:
		return 2
	}
}

func scoreBeginnerTerrain(pct *float64) float64 {
	if pct == nil {
		return neutralScore
	}
	switch {
	case *pct >= 40:
		return 10
	case *pct >= 30:
		return 8
	case *pct >= 20:
		return 6
	case *pct >= 10:
		return 4
	default:
		return 2
	}
}

func scoreDayPass(usd *float64) float64 {
	if usd == nil {
		return neutralScore
	}
	switch {
	case *usd <= 50:
		return 10
	case *usd <= 80:
		return 8
	case *usd <= 110:
		return 6
	case *usd <= 150:
		return 4
	default:
		return 2
	}
}

func scoreTransferTime(minutes *int) float64 {
	if minutes == nil {
		return neutralScore
	}
	switch {
	case *minutes <= 30:
		return 10
	case *minutes <= 60:
		return 8
	case *minutes <= 90:
		return 6
	case *minutes <= 150:
		return 4
	default:
		return 2
	}
}

func average(scores ...float64) float64 {
	if len(scores) == 0 {
		return neutralScore
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}
