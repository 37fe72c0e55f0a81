// Package derivation holds the dimensional lookups used to turn a pipe component's
// configuration into flange counts, weights and fastener requirements.
//
// Every function here is pure and total: unknown inputs resolve to a zero count or a
// table default, never to an error, so callers can invoke them unconditionally.
package derivation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Item types understood by the flange count tables.
const (
	ItemTypeStraightPipe = "straight_pipe"
	ItemTypeBend         = "bend"
	ItemTypeFitting      = "fitting"
)

// DefaultPressureRating is used when a pressure class carries no PN value.
const DefaultPressureRating = 16

var pressurePattern = regexp.MustCompile(`(?i)PN(\d+)`)

var (
	gasketFactor      = decimal.RequireFromString("0.002")
	spiralMultiplier  = decimal.RequireFromString("1.5")
	ringMultiplier    = decimal.NewFromInt(2)
	blankWeightFactor = decimal.RequireFromString("0.6")
)

// FlangeCount is the number of flanges on the run (main) and branch side of one component.
type FlangeCount struct {
	Main   int
	Branch int
}

// BoltSet describes the bolt/nut/washer set for one bolted flange joint.
type BoltSet struct {
	BoltSize       string
	HolesPerFlange int
	WeightPerHole  decimal.Decimal
}

// WeightPerSet is the weight of a full set for one joint.
func (b BoltSet) WeightPerSet() decimal.Decimal {
	return b.WeightPerHole.Mul(decimal.NewFromInt(int64(b.HolesPerFlange)))
}

// FlangeCountFor returns the flange counts implied by an end configuration code.
// Straight pipes, bends and untyped items share one table; fittings have their own.
func FlangeCountFor(endConfig, itemType string) FlangeCount {
	switch itemType {
	case ItemTypeBend, ItemTypeStraightPipe, "":
		return FlangeCount{Main: pipeFlanges[endConfig]}
	case ItemTypeFitting:
		return fittingFlanges[endConfig]
	default:
		return FlangeCount{}
	}
}

// FlangeTypeName names the flange finish for an end configuration.
func FlangeTypeName(endConfig string) string {
	switch {
	case endConfig == "" || endConfig == "PE":
		return "Slip On"
	case strings.Contains(endConfig, "LF") || strings.Contains(endConfig, "_L"):
		return "Slip On"
	case strings.Contains(endConfig, "RF") || strings.Contains(endConfig, "_R"):
		return "Rotating"
	default:
		return "Slip On"
	}
}

// PressureRating extracts the numeric PN rating from a pressure class such as "PN16".
func PressureRating(pressureClass string) int {
	m := pressurePattern.FindStringSubmatch(pressureClass)
	if m == nil {
		return DefaultPressureRating
	}
	pn, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultPressureRating
	}
	return pn
}

// Nearest returns the axis value closest to v by absolute distance. Ties keep the
// earlier candidate, so with an ascending axis the lower value wins.
func Nearest(axis []int, v int) int {
	if len(axis) == 0 {
		return v
	}
	best := axis[0]
	for _, candidate := range axis[1:] {
		if abs(candidate-v) < abs(best-v) {
			best = candidate
		}
	}
	return best
}

// FlangeWeight returns the weight in kg of one flange.
func FlangeWeight(nominalBore int, pressureClass string) decimal.Decimal {
	nb := Nearest(boreAxis, nominalBore)
	pn := Nearest(pressureAxis, PressureRating(pressureClass))
	w, ok := flangeWeightTable[nb][pn]
	if !ok {
		return defaultFlangeWeight
	}
	return decimal.RequireFromString(w)
}

// BlankFlangeWeight returns the weight in kg of one blank flange.
func BlankFlangeWeight(nominalBore int, pressureClass string) decimal.Decimal {
	return FlangeWeight(nominalBore, pressureClass).Mul(blankWeightFactor)
}

// BoltSetFor returns bolt size, hole count and per-hole weight for a flange joint.
func BoltSetFor(nominalBore int, pressureClass string) BoltSet {
	nb := Nearest(boreAxis, nominalBore)
	pn := Nearest(pressureAxis, PressureRating(pressureClass))
	cell, ok := boltTable[nb][pn]
	if !ok {
		cell = defaultBoltCell
	}
	return BoltSet{
		BoltSize:       cell.boltSize,
		HolesPerFlange: cell.holes,
		WeightPerHole:  decimal.RequireFromString(cell.weight),
	}
}

// GasketWeight returns the weight in kg of one gasket.
func GasketWeight(gasketType string, nominalBore int) decimal.Decimal {
	base := decimal.NewFromInt(int64(nominalBore)).Mul(gasketFactor)
	t := strings.ToLower(gasketType)
	switch {
	case strings.Contains(t, "spiral"):
		return base.Mul(spiralMultiplier)
	case strings.Contains(t, "ring"):
		return base.Mul(ringMultiplier)
	default:
		return base
	}
}

// BoltSetsForFlanges is the number of bolt sets (and gaskets) needed for a flange
// quantity: a joint is shared by two flanges, rounded up per line item.
func BoltSetsForFlanges(flangeQty int) int {
	if flangeQty <= 0 {
		return 0
	}
	return (flangeQty + 1) / 2
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
