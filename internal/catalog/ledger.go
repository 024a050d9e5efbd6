package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Ledger holds the variant set of a product while it is being authored.
// Nothing here touches the backing store; the persistence adapter commits
// the ledger on an explicit save.
//
// Ledger is not safe for concurrent use. Authoring happens in a single
// request or UI session at a time.
type Ledger struct {
	categories []Category
	variants   []Variant
}

// ChangeSet reports what a ledger mutation did. Destructive is set when
// existing variants were removed, so callers can require an explicit user
// confirmation before persisting.
type ChangeSet struct {
	Added       []Variant
	Removed     []Variant
	Destructive bool
}

// NewLedger builds a ledger from a product's persisted categories and
// variants, e.g. when a seller reopens an existing product for editing.
func NewLedger(categories []Category, variants []Variant) *Ledger {
	return &Ledger{
		categories: slices.Clone(categories),
		variants:   slices.Clone(variants),
	}
}

// Categories returns the current category list in authoring order.
func (l *Ledger) Categories() []Category {
	return slices.Clone(l.categories)
}

// Variants returns the current variant set in authoring order.
func (l *Ledger) Variants() []Variant {
	return slices.Clone(l.variants)
}

// UpsertCategory adds a category or applies an edit to an existing one,
// reconciling the variant set incrementally:
//
//   - a new category appends only the combination tuples that do not exist
//     yet, each with the base price and zero stock;
//   - removing a value from a category deletes exactly the variants whose
//     tuple referenced it at that position (destructive);
//   - adding a value creates only the newly missing tuples, leaving the
//     price/stock/image of every pre-existing variant untouched.
//
// Removal is destructive because a variant referencing a removed value is
// structurally invalid; an added value cannot invalidate anything, hence
// the asymmetry.
func (l *Ledger) UpsertCategory(cat Category, basePrice int64) (ChangeSet, error) {
	if err := validateCategory(cat); err != nil {
		return ChangeSet{}, err
	}
	cat.Values = dedupValues(cat.Values)

	idx := slices.IndexFunc(l.categories, func(c Category) bool { return c.ID == cat.ID })
	for i, c := range l.categories {
		if i != idx && c.Name == cat.Name {
			return ChangeSet{}, fmt.Errorf("category %q: %w", cat.Name, ErrDuplicateCategory)
		}
	}

	if idx < 0 {
		return l.appendCategory(cat, basePrice), nil
	}
	return l.editCategory(idx, cat, basePrice), nil
}

// appendCategory introduces a new variation axis. Variants authored against
// the previous axis count have a different tuple arity and can no longer be
// addressed, so they are pruned and reported as destructive.
func (l *Ledger) appendCategory(cat Category, basePrice int64) ChangeSet {
	var cs ChangeSet
	l.categories = append(l.categories, cat)

	kept := l.variants[:0]
	for _, v := range l.variants {
		if len(v.Combination) == len(l.categories) {
			kept = append(kept, v)
		} else {
			cs.Removed = append(cs.Removed, v)
		}
	}
	l.variants = kept
	cs.Destructive = len(cs.Removed) > 0

	cs.Added = l.appendMissing(basePrice)
	return cs
}

// editCategory applies value removals first, then generates variants for
// added values.
func (l *Ledger) editCategory(idx int, cat Category, basePrice int64) ChangeSet {
	var cs ChangeSet
	old := l.categories[idx]

	removed := make(map[string]bool)
	for _, v := range old.Values {
		if !slices.Contains(cat.Values, v) {
			removed[v] = true
		}
	}

	l.categories[idx] = cat

	if len(removed) > 0 {
		kept := l.variants[:0]
		for _, v := range l.variants {
			if removed[v.Combination[idx]] {
				cs.Removed = append(cs.Removed, v)
			} else {
				kept = append(kept, v)
			}
		}
		l.variants = kept
		cs.Destructive = true
	}

	cs.Added = l.appendMissing(basePrice)
	return cs
}

// appendMissing generates the full combination set for the current
// categories and appends every tuple not present yet.
func (l *Ledger) appendMissing(basePrice int64) []Variant {
	existing := make(map[string]bool, len(l.variants))
	for _, v := range l.variants {
		existing[tupleKey(v.Combination)] = true
	}

	var added []Variant
	for _, tuple := range Combinations(l.categories) {
		if existing[tupleKey(tuple)] {
			continue
		}
		v := Variant{
			ID:          EphemeralID(),
			Combination: tuple,
			Price:       basePrice,
			Stock:       0,
		}
		l.variants = append(l.variants, v)
		added = append(added, v)
	}
	return added
}

// RemoveCategory deletes a category and clears the entire variant set:
// the tuple arity changes, so every existing combination becomes invalid.
// Callers must confirm this destructive action with the user first.
func (l *Ledger) RemoveCategory(id uuid.UUID) (ChangeSet, error) {
	idx := slices.IndexFunc(l.categories, func(c Category) bool { return c.ID == id })
	if idx < 0 {
		return ChangeSet{}, ErrUnknownCategory
	}
	cs := ChangeSet{
		Removed:     l.variants,
		Destructive: len(l.variants) > 0,
	}
	l.categories = slices.Delete(l.categories, idx, idx+1)
	l.variants = nil
	return cs, nil
}

// RegenerateAll discards every variant and rebuilds the full cross product
// fresh, resetting price, stock and image customisations. Only called on
// explicit user confirmation.
func (l *Ledger) RegenerateAll(basePrice int64) ChangeSet {
	cs := ChangeSet{
		Removed:     l.variants,
		Destructive: len(l.variants) > 0,
	}
	l.variants = nil
	cs.Added = l.appendMissing(basePrice)
	return cs
}

// AddCustomVariant inserts an ad-hoc variant from an explicit per-category
// value selection. The selection must pick exactly one defined value for
// every category; a tuple that already exists is rejected.
func (l *Ledger) AddCustomVariant(selection map[uuid.UUID]string, price int64) (*Variant, error) {
	if len(selection) != len(l.categories) {
		return nil, ErrIncompleteSelection
	}

	tuple := make([]string, len(l.categories))
	for i, cat := range l.categories {
		value, ok := selection[cat.ID]
		if !ok {
			return nil, fmt.Errorf("category %q: %w", cat.Name, ErrIncompleteSelection)
		}
		if !slices.Contains(cat.Values, value) {
			return nil, fmt.Errorf("category %q value %q: %w", cat.Name, value, ErrUnknownValue)
		}
		tuple[i] = value
	}

	key := tupleKey(tuple)
	for _, v := range l.variants {
		if tupleKey(v.Combination) == key {
			return nil, fmt.Errorf("combination %q: %w", strings.Join(tuple, "/"), ErrDuplicateCombination)
		}
	}

	v := Variant{
		ID:          EphemeralID(),
		Combination: tuple,
		Price:       price,
		Stock:       0,
	}
	l.variants = append(l.variants, v)
	return &v, nil
}

// BulkDelete removes the named variants. Unknown ids are ignored.
func (l *Ledger) BulkDelete(ids []VariantID) ChangeSet {
	drop := make(map[VariantID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var cs ChangeSet
	kept := l.variants[:0]
	for _, v := range l.variants {
		if drop[v.ID] {
			cs.Removed = append(cs.Removed, v)
		} else {
			kept = append(kept, v)
		}
	}
	l.variants = kept
	cs.Destructive = len(cs.Removed) > 0
	return cs
}

// SetVariantPrice updates the price of one variant in place.
func (l *Ledger) SetVariantPrice(id VariantID, price int64) error {
	return l.mutate(id, func(v *Variant) { v.Price = price })
}

// SetVariantStock updates the stock of one variant in place.
func (l *Ledger) SetVariantStock(id VariantID, stock int32) error {
	return l.mutate(id, func(v *Variant) { v.Stock = stock })
}

// SetVariantImage attaches an image to one variant.
func (l *Ledger) SetVariantImage(id VariantID, img Image) error {
	return l.mutate(id, func(v *Variant) { v.Image = img })
}

func (l *Ledger) mutate(id VariantID, fn func(v *Variant)) error {
	for i := range l.variants {
		if l.variants[i].ID == id {
			fn(&l.variants[i])
			return nil
		}
	}
	return fmt.Errorf("variant %s: %w", id, ErrUnknownVariant)
}

// Validate is the gate before save. Category names must be unique, every
// variant needs a positive price and a combination that picks exactly one
// defined value per category, and no two variants may share a tuple. The
// structural checks matter for ledgers rebuilt from client input, which
// never went through UpsertCategory or AddCustomVariant. Zero stock is
// allowed and means unavailable. The first offence is reported.
func (l *Ledger) Validate() error {
	names := make(map[string]bool, len(l.categories))
	for _, c := range l.categories {
		if names[c.Name] {
			return fmt.Errorf("category %q: %w", c.Name, ErrDuplicateCategory)
		}
		names[c.Name] = true
	}

	seen := make(map[string]bool, len(l.variants))
	for _, v := range l.variants {
		label := strings.Join(v.Combination, "/")
		if v.Price <= 0 {
			return fmt.Errorf("variant %q: %w", label, ErrInvalidVariantPrice)
		}
		if len(v.Combination) != len(l.categories) {
			return fmt.Errorf("variant %q: %w", label, ErrIncompleteSelection)
		}
		for i, cat := range l.categories {
			if !slices.Contains(cat.Values, v.Combination[i]) {
				return fmt.Errorf("category %q value %q: %w", cat.Name, v.Combination[i], ErrUnknownValue)
			}
		}
		key := tupleKey(v.Combination)
		if seen[key] {
			return fmt.Errorf("combination %q: %w", label, ErrDuplicateCombination)
		}
		seen[key] = true
	}
	return nil
}

func validateCategory(cat Category) error {
	if cat.Name == "" || len(cat.Values) == 0 {
		return ErrEmptyCategory
	}
	for _, v := range cat.Values {
		if v == "" {
			return ErrEmptyCategory
		}
	}
	return nil
}

// dedupValues drops repeated values while keeping first-seen order.
func dedupValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
