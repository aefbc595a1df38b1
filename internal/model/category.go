package model

import "strings"

// Category is one label from a closed vocabulary.
type Category string

const (
	CategoryTechnology    Category = "Technology"
	CategoryBusiness      Category = "Business"
	CategoryScience       Category = "Science"
	CategoryHealth        Category = "Health"
	CategoryPolitics      Category = "Politics"
	CategoryEntertainment Category = "Entertainment"
	CategorySports        Category = "Sports"
	CategoryUncategorized Category = "Uncategorized"
)

// FallbackCategory is assigned whenever no valid label can be produced.
const FallbackCategory = CategoryUncategorized

// Categories lists the vocabulary in prompt order; the fallback is last.
var Categories = []Category{
	CategoryTechnology,
	CategoryBusiness,
	CategoryScience,
	CategoryHealth,
	CategoryPolitics,
	CategoryEntertainment,
	CategorySports,
	CategoryUncategorized,
}

// ParseCategory matches s case-insensitively against the vocabulary.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c belongs to the vocabulary.
func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok && string(c) == strings.TrimSpace(string(c))
}
