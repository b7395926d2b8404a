package receipt

import "strings"

// Category is the spending category of a vendor
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealth,
	CategoryOther,
}

// ParseCategory matches raw against the categories ignoring case.
// Empty input means no category; anything unrecognized is Other.
func ParseCategory(raw string) *Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, c := range Categories {
		if strings.EqualFold(raw, string(c)) {
			return categoryPtr(c)
		}
	}
	return categoryPtr(CategoryOther)
}

// LookupCategory is the strict variant of ParseCategory used for user input
func LookupCategory(raw string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(raw), string(c)) {
			return c, true
		}
	}
	return "", false
}

func categoryPtr(c Category) *Category {
	return &c
}

// vendorKeywords maps each category to vendor-name fragments that hint at it.
// Order matters: the first category with a matching keyword wins.
var vendorKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryFood, []string{
		"restaurant", "cafe", "diner", "bistro", "eatery", "pizzeria", "steakhouse", "bakery",
		"patisserie", "delicatessen", "coffee", "tea house", "juice bar", "ice cream", "gelato",
		"donut", "bagel", "sandwich", "burger", "taco", "sushi", "ramen", "pizza", "kitchen",
		"mcdonald", "kfc", "subway", "domino", "ubereats", "doordash", "grubhub", "deliveroo",
	}},
	{CategoryTransport, []string{
		"taxi", "uber", "lyft", "cab", "bus", "train", "metro", "tram", "ferry", "shuttle",
		"fuel", "petrol", "diesel", "gas station", "charging station", "car wash", "auto repair",
		"tire", "tyre", "mechanic", "parking", "toll", "airline", "airport", "railway", "transit",
	}},
	{CategoryUtilities, []string{
		"electric", "water", "sewer", "waste", "recycling", "power", "energy", "utility",
		"internet", "broadband", "mobile", "telecom", "cable", "wireless",
	}},
	{CategoryShopping, []string{
		"store", "shop", "mall", "boutique", "outlet", "market", "grocery", "electronics",
		"furniture", "apparel", "footwear", "jewelry", "walmart", "target", "amazon", "best buy",
		"ikea", "costco", "retail",
	}},
	{CategoryEntertainment, []string{
		"cinema", "theater", "theatre", "stadium", "arena", "casino", "concert", "festival",
		"museum", "gaming", "arcade", "bowling", "karting", "netflix", "spotify", "disney",
	}},
	{CategoryHealth, []string{
		"hospital", "clinic", "pharmacy", "drugstore", "medical", "diagnostic", "doctor",
		"dentist", "dental", "physician", "therapy", "optician", "vitamin",
	}},
}

// SuggestCategory guesses a category from the vendor name, or nil if nothing matches
func SuggestCategory(vendorName string) *Category {
	name := strings.ToLower(vendorName)
	if strings.TrimSpace(name) == "" {
		return nil
	}
	for _, entry := range vendorKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(name, keyword) {
				return categoryPtr(entry.category)
			}
		}
	}
	return nil
}
