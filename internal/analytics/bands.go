package analytics

import (
	"math"
	"slices"
)

// BasketBandOrder lists basket bands from lowest to highest.
var BasketBandOrder = []string{"₱0-10", "₱11-20", "₱21-50", "₱51-100", "₱101-200", "₱200+"}

var basketBandCeilings = []float64{10, 20, 50, 100, 200}

// BasketBand maps a basket total to its band. Each band's upper bound is
// inclusive, and everything at or below 10 (zero included) is the lowest
// band.
func BasketBand(total float64) string {
	for i, ceil := range basketBandCeilings {
		if total <= ceil {
			return BasketBandOrder[i]
		}
	}
	return BasketBandOrder[len(BasketBandOrder)-1]
}

type priceTier struct {
	label     string
	low, high float64
}

var priceTiers = []priceTier{
	{"₱0-10", 0, 10},
	{"₱11-20", 10, 20},
	{"₱21-30", 20, 30},
	{"₱31-50", 30, 50},
	{"₱51-70", 50, 70},
	{"₱71-100", 70, 100},
	{"₱100+", 100, math.Inf(1)},
}

// PriceTierOrder lists price tiers from cheapest to dearest.
var PriceTierOrder = func() []string {
	out := make([]string, len(priceTiers))
	for i, t := range priceTiers {
		out[i] = t.label
	}
	return out
}()

// PriceTier maps a unit price to its tier over (low, high] intervals.
// Prices at or below zero have no tier.
func PriceTier(price float64) (string, bool) {
	for _, t := range priceTiers {
		if price > t.low && price <= t.high {
			return t.label, true
		}
	}
	return "", false
}

// Strategic tier labels.
const (
	TierCoreTrafficDriver    = "Core Traffic Driver"
	TierHighFrequencyImpulse = "High-Frequency Impulse"
	TierHighValueUtility     = "High-Value Utility"
	TierMealPrepSupport      = "Meal Prep Support"
	TierImpulseBuy           = "Impulse Buy"
	TierHygieneSachetStaple  = "Hygiene/Sachet Staple"
	TierHouseholdStaple      = "Household Staple"
)

// StrategicTier labels a category from its 1-based units rank, its share of
// units in percent, and its revenue.
func StrategicTier(rank int, share, revenue float64) string {
	switch {
	case rank <= 2:
		if share > 20 || revenue > 100000 {
			return TierCoreTrafficDriver
		}
		return TierHighFrequencyImpulse
	case rank <= 4:
		if revenue > 100000 {
			return TierHighValueUtility
		}
		return TierMealPrepSupport
	case rank == 5:
		return TierImpulseBuy
	case rank == 6:
		return TierHygieneSachetStaple
	case share > 3:
		return TierHygieneSachetStaple
	default:
		return TierHouseholdStaple
	}
}

// Day-of-month window labels.
const (
	WindowPayday  = "payday"
	WindowPetsa   = "petsa_de_peligro"
	WindowOverlap = "overlap"
	WindowRegular = "regular"
)

var paydays = []int{15, 30}

// Windows holds the day-of-month sets behind the payday chart, each sorted
// ascending.
type Windows struct {
	Payday  []int `json:"payday"`
	Petsa   []int `json:"petsa_de_peligro"`
	Overlap []int `json:"overlap"`
}

var windows = computeWindows()

// PaydayWindows returns the payday, petsa de peligro and overlap day sets.
func PaydayWindows() Windows {
	return Windows{
		Payday:  slices.Clone(windows.Payday),
		Petsa:   slices.Clone(windows.Petsa),
		Overlap: slices.Clone(windows.Overlap),
	}
}

func computeWindows() Windows {
	payday := map[int]bool{}
	petsa := map[int]bool{}
	for _, p := range paydays {
		for d := p - 2; d <= p+2; d++ {
			if d >= 1 && d <= 31 {
				payday[d] = true
			}
		}
		for d := p - 3; d < p; d++ {
			if d >= 1 && d <= 31 {
				petsa[d] = true
			}
		}
	}
	for _, d := range []int{29, 30, 31, 1, 2, 3} {
		payday[d] = true
	}
	for _, d := range []int{26, 27, 28, 11, 12, 13} {
		petsa[d] = true
	}

	var w Windows
	for d := 1; d <= 31; d++ {
		switch {
		case payday[d] && petsa[d]:
			w.Overlap = append(w.Overlap, d)
			w.Payday = append(w.Payday, d)
			w.Petsa = append(w.Petsa, d)
		case payday[d]:
			w.Payday = append(w.Payday, d)
		case petsa[d]:
			w.Petsa = append(w.Petsa, d)
		}
	}
	return w
}

// DayWindow labels a day of month. Overlap days take precedence over both
// of their parent windows.
func DayWindow(day int) string {
	inPayday := slices.Contains(windows.Payday, day)
	inPetsa := slices.Contains(windows.Petsa, day)
	switch {
	case inPayday && inPetsa:
		return WindowOverlap
	case inPayday:
		return WindowPayday
	case inPetsa:
		return WindowPetsa
	default:
		return WindowRegular
	}
}
