package catalog

import "strings"

// Combinations returns the cartesian product of the category value sets,
// one value per category, preserving category order as tuple position.
// The last category varies fastest, so output order is stable for a given
// input and can be diffed against an existing variant set.
// Zero categories yield an empty result.
func Combinations(categories []Category) [][]string {
	if len(categories) == 0 {
		return nil
	}

	total := 1
	for _, c := range categories {
		total *= len(c.Values)
	}
	if total == 0 {
		return nil
	}

	out := make([][]string, 0, total)
	tuple := make([]string, len(categories))

	var expand func(depth int)
	expand = func(depth int) {
		if depth == len(categories) {
			out = append(out, append([]string(nil), tuple...))
			return
		}
		for _, v := range categories[depth].Values {
			tuple[depth] = v
			expand(depth + 1)
		}
	}
	expand(0)

	return out
}

// tupleKey folds a combination into a map key. The unit separator does not
// occur in user-entered values, so distinct tuples never collide.
func tupleKey(combination []string) string {
	return strings.Join(combination, "\x1f")
}
