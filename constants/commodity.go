package constants

import (
	"strings"
	"unicode"
)

type Commodity string

const (
	Gold       Commodity = "Gold"
	Silver     Commodity = "Silver"
	Copper     Commodity = "Copper"
	Zinc       Commodity = "Zinc"
	Lead       Commodity = "Lead"
	Nickel     Commodity = "Nickel"
	Cobalt     Commodity = "Cobalt"
	Lithium    Commodity = "Lithium"
	Uranium    Commodity = "Uranium"
	Platinum   Commodity = "Platinum"
	Palladium  Commodity = "Palladium"
	Iron       Commodity = "Iron Ore"
	Molybdenum Commodity = "Molybdenum"
	Tin        Commodity = "Tin"
	Tungsten   Commodity = "Tungsten"
	Graphite   Commodity = "Graphite"
	Coal       Commodity = "Coal"
	Potash     Commodity = "Potash"
	RareEarths Commodity = "Rare Earths"
	Vanadium   Commodity = "Vanadium"
	Manganese  Commodity = "Manganese"
)

var allCommodities = []Commodity{
	Gold, Silver, Copper, Zinc, Lead, Nickel, Cobalt, Lithium, Uranium,
	Platinum, Palladium, Iron, Molybdenum, Tin, Tungsten, Graphite, Coal,
	Potash, RareEarths, Vanadium, Manganese,
}

// synonyms maps element symbols and common spellings to a canonical name.
var synonyms = map[string]Commodity{
	"au":                  Gold,
	"ag":                  Silver,
	"cu":                  Copper,
	"zn":                  Zinc,
	"pb":                  Lead,
	"ni":                  Nickel,
	"co":                  Cobalt,
	"li":                  Lithium,
	"u":                   Uranium,
	"u3o8":                Uranium,
	"pt":                  Platinum,
	"pd":                  Palladium,
	"pgm":                 Platinum,
	"fe":                  Iron,
	"iron":                Iron,
	"mo":                  Molybdenum,
	"moly":                Molybdenum,
	"sn":                  Tin,
	"w":                   Tungsten,
	"ree":                 RareEarths,
	"rees":                RareEarths,
	"rare earth":          RareEarths,
	"rare earth elements": RareEarths,
	"v":                   Vanadium,
	"mn":                  Manganese,
	"lithium carbonate":   Lithium,
	"spodumene":           Lithium,
	"thermal coal":        Coal,
	"metallurgical coal":  Coal,
	"met coal":            Coal,
}

// AsStringSlice returns the canonical commodity names.
func AsStringSlice() []string {
	result := make([]string, len(allCommodities))
	for i, c := range allCommodities {
		result[i] = string(c)
	}
	return result
}

// Canonicalize maps a free-form commodity label to its canonical name.
// Unknown labels come back trimmed and title-cased with ok=false.
func Canonicalize(input string) (string, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if normalized == "" {
		return "", false
	}
	if c, ok := synonyms[normalized]; ok {
		return string(c), true
	}
	for _, c := range allCommodities {
		if normalized == strings.ToLower(string(c)) {
			return string(c), true
		}
	}
	return titleCase(normalized), false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
