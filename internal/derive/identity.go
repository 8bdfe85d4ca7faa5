package derive

import "strings"

// MultipleLabel is the category assigned when a respondent selects more
// than one option on an identity dimension.
const MultipleLabel = "multiple"

// Identity is the per-wave summary of one multi-select identity dimension.
type Identity struct {
	// Category is the selected option label, MultipleLabel when several
	// options were ticked, or "" when the dimension is missing.
	Category string
	Multiple bool
	Missing  bool
}

// DeriveIdentity summarizes a multi-select identity dimension for one wave.
// Items and labels must be aligned; a box is selected when its value is
// exactly 1, and no selections means the dimension is missing.
func DeriveIdentity(items []float64, labels []string) Identity {
	var selected []string
	for i, v := range items {
		if v == 1 && i < len(labels) {
			selected = append(selected, labels[i])
		}
	}

	switch len(selected) {
	case 0:
		return Identity{Missing: true}
	case 1:
		return Identity{Category: selected[0]}
	default:
		return Identity{Category: MultipleLabel, Multiple: true}
	}
}

// OptionLabels strips the dimension prefix from checkbox column names,
// turning "gender_woman" into "woman".
func OptionLabels(items []string) []string {
	labels := make([]string, len(items))
	for i, item := range items {
		if idx := strings.IndexByte(item, '_'); idx >= 0 {
			labels[i] = item[idx+1:]
		} else {
			labels[i] = item
		}
	}
	return labels
}
