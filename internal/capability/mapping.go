// Package capability maps BOQ section types to the supplier capabilities required to quote
// on them, and supplier product categories to those same capability keys.
package capability

import (
	"sort"
	"strings"
)

// Section types produced by the section builder.
const (
	SectionStraightPipes     = "straight_pipes"
	SectionBends             = "bends"
	SectionTees              = "tees"
	SectionReducers          = "reducers"
	SectionFlanges           = "flanges"
	SectionBlankFlanges      = "blank_flanges"
	SectionBnwSets           = "bnw_sets"
	SectionGaskets           = "gaskets"
	SectionSurfaceProtection = "surface_protection"
	SectionHdpePipes         = "hdpe_pipes"
	SectionPvcPipes          = "pvc_pipes"
	SectionStructuralSteel   = "structural_steel"
)

// Capability keys.
const (
	FabricatedSteel   = "fabricated_steel"
	FastenersGaskets  = "fasteners_gaskets"
	SurfaceProtection = "surface_protection"
	Hdpe              = "hdpe"
	Pvc               = "pvc"
	StructuralSteel   = "structural_steel"
)

// DefaultVersion identifies the built-in tables.
const DefaultVersion = "2024.1"

// Mapping is a versioned, read-only set of lookup tables. Once built it is never mutated,
// so a single instance can be shared across goroutines.
type Mapping struct {
	version              string
	sectionOrder         []string
	sectionCapabilities  map[string]string
	categoryCapabilities map[string]string
	sectionTitles        map[string]string
	capabilityLabels     map[string]string
}

// Overrides replaces or extends entries of the default tables. Category keys are matched
// case-insensitively because configuration loaders lowercase map keys.
type Overrides struct {
	Version              string
	SectionCapabilities  map[string]string
	CategoryCapabilities map[string]string
	SectionTitles        map[string]string
}

// Default returns the built-in mapping.
func Default() *Mapping {
	return &Mapping{
		version: DefaultVersion,
		sectionOrder: []string{
			SectionStraightPipes,
			SectionBends,
			SectionTees,
			SectionReducers,
			SectionFlanges,
			SectionBlankFlanges,
			SectionBnwSets,
			SectionGaskets,
			SectionSurfaceProtection,
			SectionHdpePipes,
			SectionPvcPipes,
			SectionStructuralSteel,
		},
		sectionCapabilities: map[string]string{
			SectionStraightPipes:     FabricatedSteel,
			SectionBends:             FabricatedSteel,
			SectionTees:              FabricatedSteel,
			SectionReducers:          FabricatedSteel,
			SectionFlanges:           FabricatedSteel,
			SectionBlankFlanges:      FabricatedSteel,
			SectionBnwSets:           FastenersGaskets,
			SectionGaskets:           FastenersGaskets,
			SectionSurfaceProtection: SurfaceProtection,
			SectionHdpePipes:         Hdpe,
			SectionPvcPipes:          Pvc,
			SectionStructuralSteel:   StructuralSteel,
		},
		categoryCapabilities: map[string]string{
			"STRAIGHT_PIPE":    FabricatedSteel,
			"BENDS":            FabricatedSteel,
			"FLANGES":          FabricatedSteel,
			"FITTINGS":         FabricatedSteel,
			"VALVES":           FabricatedSteel,
			"STRUCTURAL_STEEL": StructuralSteel,
			"HDPE":             Hdpe,
			"PVC":              Pvc,
			"FABRICATION":      FabricatedSteel,
			"COATING":          SurfaceProtection,
			"INSPECTION":       SurfaceProtection,
			"OTHER":            FabricatedSteel,
		},
		sectionTitles: map[string]string{
			SectionStraightPipes:     "Straight Pipes",
			SectionBends:             "Bends",
			SectionTees:              "Tees",
			SectionReducers:          "Reducers",
			SectionFlanges:           "Flanges",
			SectionBlankFlanges:      "Blank Flanges",
			SectionBnwSets:           "Bolt, Nut & Washer Sets",
			SectionGaskets:           "Gaskets",
			SectionSurfaceProtection: "Surface Protection",
			SectionHdpePipes:         "HDPE Pipes",
			SectionPvcPipes:          "PVC Pipes",
			SectionStructuralSteel:   "Structural Steel",
		},
		capabilityLabels: map[string]string{
			FabricatedSteel:   "Fabricated Steel (Pipes, Bends, Fittings, Flanges)",
			FastenersGaskets:  "Nuts, Bolts, Washers & Gaskets",
			SurfaceProtection: "Surface Protection (Coating, Lining, Inspection)",
			Hdpe:              "HDPE Pipes & Fittings",
			Pvc:               "PVC Pipes & Fittings",
			StructuralSteel:   "Structural Steel",
		},
	}
}

// WithOverrides returns a copy of m with the overrides applied. Sections that only appear in
// the overrides are appended to the section order, sorted by name.
func (m *Mapping) WithOverrides(o Overrides) *Mapping {
	out := &Mapping{
		version:              m.version,
		sectionOrder:         append([]string(nil), m.sectionOrder...),
		sectionCapabilities:  copyMap(m.sectionCapabilities),
		categoryCapabilities: copyMap(m.categoryCapabilities),
		sectionTitles:        copyMap(m.sectionTitles),
		capabilityLabels:     copyMap(m.capabilityLabels),
	}
	if o.Version != "" {
		out.version = o.Version
	}

	var added []string
	for section, capabilityKey := range o.SectionCapabilities {
		if _, known := out.sectionCapabilities[section]; !known && !out.isOrdered(section) {
			added = append(added, section)
		}
		out.sectionCapabilities[section] = capabilityKey
	}
	sort.Strings(added)
	out.sectionOrder = append(out.sectionOrder, added...)

	for category, capabilityKey := range o.CategoryCapabilities {
		out.categoryCapabilities[strings.ToUpper(category)] = capabilityKey
	}
	for section, title := range o.SectionTitles {
		out.sectionTitles[section] = title
	}
	return out
}

// Version identifies the table set in use.
func (m *Mapping) Version() string {
	return m.version
}

// SectionTypes lists every known section type in canonical order.
func (m *Mapping) SectionTypes() []string {
	return append([]string(nil), m.sectionOrder...)
}

// CapabilityForSection returns the capability key required to quote on a section.
func (m *Mapping) CapabilityForSection(sectionType string) (string, bool) {
	c, ok := m.sectionCapabilities[sectionType]
	return c, ok && c != ""
}

// CapabilityForCategory translates a supplier product category into a capability key.
func (m *Mapping) CapabilityForCategory(category string) (string, bool) {
	c, ok := m.categoryCapabilities[strings.ToUpper(category)]
	return c, ok && c != ""
}

// SectionTitle returns the display title of a section, falling back to the raw tag.
func (m *Mapping) SectionTitle(sectionType string) string {
	if title, ok := m.sectionTitles[sectionType]; ok && title != "" {
		return title
	}
	return sectionType
}

// SectionTitles maps a list of section types to their display titles.
func (m *Mapping) SectionTitles(sectionTypes []string) []string {
	titles := make([]string, len(sectionTypes))
	for i, s := range sectionTypes {
		titles[i] = m.SectionTitle(s)
	}
	return titles
}

// CapabilityLabel returns the human readable label of a capability key.
func (m *Mapping) CapabilityLabel(capabilityKey string) string {
	if label, ok := m.capabilityLabels[capabilityKey]; ok {
		return label
	}
	return capabilityKey
}

// SectionsForCapability lists the section types a capability grants, in canonical order.
func (m *Mapping) SectionsForCapability(capabilityKey string) []string {
	return m.SectionsForCapabilities([]string{capabilityKey})
}

// SectionsForCapabilities expands a set of capability keys into the section types they
// grant, deduplicated and in canonical order.
func (m *Mapping) SectionsForCapabilities(capabilityKeys []string) []string {
	wanted := make(map[string]struct{}, len(capabilityKeys))
	for _, c := range capabilityKeys {
		wanted[c] = struct{}{}
	}
	var sections []string
	for _, s := range m.sectionOrder {
		if _, ok := wanted[m.sectionCapabilities[s]]; ok {
			sections = append(sections, s)
		}
	}
	return sections
}

// Validate reports the section types that have no capability mapping. An empty result
// means every given section can be routed to suppliers.
func (m *Mapping) Validate(sectionTypes []string) []string {
	var missing []string
	for _, s := range sectionTypes {
		if _, ok := m.CapabilityForSection(s); !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// ValidateComplete checks the tables against themselves: every ordered section needs a
// capability, and every capability referenced by a category must grant a section.
func (m *Mapping) ValidateComplete() []string {
	problems := make([]string, 0)
	for _, s := range m.Validate(m.sectionOrder) {
		problems = append(problems, "section "+s+" has no capability")
	}

	categories := make([]string, 0, len(m.categoryCapabilities))
	for c := range m.categoryCapabilities {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		if len(m.SectionsForCapability(m.categoryCapabilities[c])) == 0 {
			problems = append(problems, "category "+c+" grants no sections")
		}
	}
	return problems
}

func (m *Mapping) isOrdered(section string) bool {
	for _, s := range m.sectionOrder {
		if s == section {
			return true
		}
	}
	return false
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
