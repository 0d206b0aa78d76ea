package catalog

const DefaultCategory = "food"

var DefaultCategories = []string{"food", "drink", "snack", "dessert", "other"}

func IsDefaultCategory(category string) bool {
	for _, c := range DefaultCategories {
		if c == category {
			return true
		}
	}
	return false
}

// CustomCategories returns the distinct categories used by items that are not
// in DefaultCategories, in first-seen order.
func CustomCategories(items []MenuItem) []string {
	seen := make(map[string]bool)
	custom := []string{}
	for _, item := range items {
		if item.Category == "" || IsDefaultCategory(item.Category) || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		custom = append(custom, item.Category)
	}
	return custom
}

// Categories is the default set followed by the custom ones.
func Categories(items []MenuItem) []string {
	all := append([]string{}, DefaultCategories...)
	return append(all, CustomCategories(items)...)
}
