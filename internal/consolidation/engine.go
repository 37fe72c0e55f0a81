// Package consolidation aggregates RFQ line items into keyed product families (flanges,
// bolt sets, gaskets and blank flanges) ready to be flushed into BOQ sections.
package consolidation

import (
	"fmt"
	"sort"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/derivation"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// Defaults applied to line items that omit a field.
const (
	DefaultNominalBore      = 100
	DefaultEndConfiguration = "PE"
	DefaultQuantity         = 1
	DefaultPressureClass    = "PN16"
	DefaultGasketType       = "NBR"
)

const (
	unitEach = "Each"
	unitSets = "sets"
)

// Options configures an Engine. Empty fields fall back to the package defaults.
type Options struct {
	PressureClass string
	GasketType    string
}

// Engine consolidates the line items of one RFQ. It holds no mutable state, so one
// instance can serve concurrent requests.
type Engine struct {
	pressureClass string
	gasketType    string
}

// NewEngine creates a consolidation engine
func NewEngine(opts Options) *Engine {
	e := &Engine{
		pressureClass: opts.PressureClass,
		gasketType:    opts.GasketType,
	}
	if e.pressureClass == "" {
		e.pressureClass = DefaultPressureClass
	}
	if e.gasketType == "" {
		e.gasketType = DefaultGasketType
	}
	return e
}

// Result holds the consolidated families of one RFQ.
type Result struct {
	Flanges      *Family
	BnwSets      *Family
	Gaskets      *Family
	BlankFlanges *Family
}

// Families returns every family in section order.
func (r *Result) Families() []*Family {
	return []*Family{r.Flanges, r.BlankFlanges, r.BnwSets, r.Gaskets}
}

// IsEmpty reports whether no family produced any item.
func (r *Result) IsEmpty() bool {
	for _, f := range r.Families() {
		if f.Len() > 0 {
			return false
		}
	}
	return true
}

// resolvedLine is a line item with defaults applied
type resolvedLine struct {
	lineNumber       int
	itemType         string
	nominalBore      int
	branchBore       int
	endConfig        string
	quantity         int
	addBlankFlange   bool
	blankFlangeCount int
}

func resolve(item models.RfqLineItem) resolvedLine {
	d := item.Details.Data()

	line := resolvedLine{
		lineNumber:       item.LineNumber,
		itemType:         item.ItemType,
		nominalBore:      d.NominalBoreMm,
		branchBore:       d.BranchNominalBoreMm,
		endConfig:        d.EndConfiguration,
		quantity:         item.Quantity,
		addBlankFlange:   d.AddBlankFlange,
		blankFlangeCount: d.BlankFlangeCount,
	}
	if line.nominalBore <= 0 {
		line.nominalBore = DefaultNominalBore
	}
	if line.branchBore <= 0 {
		line.branchBore = line.nominalBore
	}
	if line.endConfig == "" {
		line.endConfig = DefaultEndConfiguration
	}
	if line.quantity <= 0 {
		line.quantity = DefaultQuantity
	}
	if item.ItemType == derivation.ItemTypeStraightPipe && d.CalculatedPipeCount > 0 {
		line.quantity = d.CalculatedPipeCount
	}
	return line
}

// Consolidate walks the line items in line number order and accumulates derived flanges,
// bolt sets, gaskets and blank flanges. The input slice is not modified.
func (e *Engine) Consolidate(items []models.RfqLineItem) *Result {
	ordered := make([]models.RfqLineItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LineNumber < ordered[j].LineNumber
	})

	result := &Result{
		Flanges:      newFamily(capability.SectionFlanges),
		BnwSets:      newFamily(capability.SectionBnwSets),
		Gaskets:      newFamily(capability.SectionGaskets),
		BlankFlanges: newFamily(capability.SectionBlankFlanges),
	}

	for _, item := range ordered {
		e.consolidateLine(result, resolve(item))
	}
	return result
}

func (e *Engine) consolidateLine(r *Result, line resolvedLine) {
	count := derivation.FlangeCountFor(line.endConfig, line.itemType)
	flangeType := derivation.FlangeTypeName(line.endConfig)

	if count.Main > 0 {
		e.addFlanges(r, line.nominalBore, flangeType, count.Main*line.quantity, line.lineNumber)
	}

	// An equal-bore branch is already covered by the run-side flanges.
	if count.Branch > 0 && line.branchBore != line.nominalBore {
		e.addFlanges(r, line.branchBore, flangeType, count.Branch*line.quantity, line.lineNumber)
	}

	if line.addBlankFlange && line.blankFlangeCount > 0 {
		qty := line.blankFlangeCount * line.quantity
		r.BlankFlanges.Add(
			BlankFlangeKey(line.nominalBore, e.pressureClass),
			fmt.Sprintf("%dNB Blank Flange %s", line.nominalBore, e.pressureClass),
			unitEach,
			qty,
			derivation.BlankFlangeWeight(line.nominalBore, e.pressureClass),
			line.lineNumber,
		)
	}
}

// addFlanges records flanges of one bore together with the bolt sets and gaskets that
// join them.
func (e *Engine) addFlanges(r *Result, nb int, flangeType string, flangeQty, lineNumber int) {
	pc := e.pressureClass

	r.Flanges.Add(
		FlangeKey(nb, pc, flangeType),
		fmt.Sprintf("%dNB %s Flange %s", nb, flangeType, pc),
		unitEach,
		flangeQty,
		derivation.FlangeWeight(nb, pc),
		lineNumber,
	)

	sets := derivation.BoltSetsForFlanges(flangeQty)
	if sets == 0 {
		return
	}

	bolt := derivation.BoltSetFor(nb, pc)
	r.BnwSets.Add(
		BoltSetKey(nb, bolt),
		fmt.Sprintf("%s BNW Set x%d for %dNB %s", bolt.BoltSize, bolt.HolesPerFlange, nb, pc),
		unitSets,
		sets,
		bolt.WeightPerSet(),
		lineNumber,
	)

	r.Gaskets.Add(
		GasketKey(nb, e.gasketType),
		fmt.Sprintf("%s Gasket %dNB %s", e.gasketType, nb, pc),
		unitEach,
		sets,
		derivation.GasketWeight(e.gasketType, nb),
		lineNumber,
	)
}

// FlangeKey identifies a flange by bore, pressure class and finish.
func FlangeKey(nb int, pressureClass, flangeType string) string {
	return fmt.Sprintf("FLANGE_%d_%s_%s", nb, pressureClass, flangeType)
}

// BoltSetKey identifies a bolt/nut/washer set by bolt size, hole count and bore.
func BoltSetKey(nb int, bolt derivation.BoltSet) string {
	return fmt.Sprintf("BNW_%s_x%d_%dNB", bolt.BoltSize, bolt.HolesPerFlange, nb)
}

// GasketKey identifies a gasket by material and bore.
func GasketKey(nb int, gasketType string) string {
	return fmt.Sprintf("GASKET_%s_%dNB", gasketType, nb)
}

// BlankFlangeKey identifies a blank flange by bore and pressure class.
func BlankFlangeKey(nb int, pressureClass string) string {
	return fmt.Sprintf("BLANK_%d_%s", nb, pressureClass)
}
