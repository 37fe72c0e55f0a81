package consolidation

import "github.com/shopspring/decimal"

// Item is one consolidated product: every contribution with the same key is merged into it.
type Item struct {
	Key         string
	Description string
	Quantity    int
	Unit        string
	WeightKg    decimal.Decimal
	Entries     []int
}

// Family accumulates consolidated items of one product family in first-seen order.
type Family struct {
	sectionType string
	keys        []string
	items       map[string]*Item
}

func newFamily(sectionType string) *Family {
	return &Family{
		sectionType: sectionType,
		items:       make(map[string]*Item),
	}
}

// SectionType is the section tag this family is flushed into.
func (f *Family) SectionType() string {
	return f.sectionType
}

// Add merges qty units of weightEach into the entry for key, creating it on first use.
// Non-positive quantities are ignored.
func (f *Family) Add(key, description, unit string, qty int, weightEach decimal.Decimal, lineNumber int) {
	if qty <= 0 {
		return
	}
	weight := weightEach.Mul(decimal.NewFromInt(int64(qty)))

	if existing, ok := f.items[key]; ok {
		existing.Quantity += qty
		existing.WeightKg = existing.WeightKg.Add(weight)
		existing.Entries = append(existing.Entries, lineNumber)
		return
	}

	f.keys = append(f.keys, key)
	f.items[key] = &Item{
		Key:         key,
		Description: description,
		Quantity:    qty,
		Unit:        unit,
		WeightKg:    weight,
		Entries:     []int{lineNumber},
	}
}

// Get returns the item stored under key.
func (f *Family) Get(key string) (Item, bool) {
	item, ok := f.items[key]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Len is the number of distinct keys.
func (f *Family) Len() int {
	return len(f.keys)
}

// Items returns copies of the consolidated items in insertion order.
func (f *Family) Items() []Item {
	out := make([]Item, 0, len(f.keys))
	for _, k := range f.keys {
		item := *f.items[k]
		item.Entries = append([]int(nil), item.Entries...)
		out = append(out, item)
	}
	return out
}

// TotalWeightKg sums the weight of every item.
func (f *Family) TotalWeightKg() decimal.Decimal {
	total := decimal.Zero
	for _, k := range f.keys {
		total = total.Add(f.items[k].WeightKg)
	}
	return total
}
