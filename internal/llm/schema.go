package llm

// FieldNames lists the keys the model may return, in schema order.
var FieldNames = []string{
	"npv", "irr", "capex", "opex", "mine_life",
	"location", "stage", "commodities",
	"resource", "reserve", "description",
}

// BuildMiningJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is optional and may be null; unknown keys are rejected.
func BuildMiningJSONSchema() map[string]any {
	props := map[string]any{
		"npv":       numberProp(),
		"irr":       numberProp(),
		"capex":     numberProp(),
		"opex":      numberProp(),
		"mine_life": numberProp(),
		"location":  stringProp(),
		"stage":     stringProp(),
		"commodities": map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"resource":    stringProp(),
		"reserve":     stringProp(),
		"description": stringProp(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func numberProp() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func stringProp() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
