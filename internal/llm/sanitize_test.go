package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndSanitizeJSON_CoercesAndDrops(t *testing.T) {
	in := `{
		"npv": "$1.2 billion",
		"irr": "15.5%",
		"capex": "US$450M",
		"opex": "1,234.5",
		"mineLife": "12 years",
		"commodity": "Au, Cu and silver",
		"location": "  Nevada, USA ",
		"stage": "PFS",
		"resource": "N/A",
		"reserve": null,
		"project_name": "Copper Flat"
	}`

	out, dropped, err := NormalizeAndSanitizeJSON([]byte(in), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.InDelta(t, 1200.0, m["npv"], 1e-9)
	assert.InDelta(t, 15.5, m["irr"], 1e-9)
	assert.InDelta(t, 450.0, m["capex"], 1e-9)
	assert.InDelta(t, 1234.5, m["opex"], 1e-9)
	assert.InDelta(t, 12.0, m["mine_life"], 1e-9)
	assert.Equal(t, []any{"Gold", "Copper", "Silver"}, m["commodities"])
	assert.Equal(t, "Nevada, USA", m["location"])
	assert.Equal(t, "Pre-Feasibility", m["stage"])
	assert.NotContains(t, m, "resource")
	assert.NotContains(t, m, "reserve")
	assert.NotContains(t, m, "project_name")

	require.NoError(t, ValidateJSONAgainstSchema(BuildMiningJSONSchema(), out))
}

func TestNormalizeAndSanitizeJSON_DedupesCommodities(t *testing.T) {
	out, _, err := NormalizeAndSanitizeJSON([]byte(`{"commodities":["gold","Au","Cu/Au",""]}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"commodities":["Gold","Copper"]}`, string(out))
}

func TestNormalizeAndSanitizeJSON_RejectsNonJSON(t *testing.T) {
	_, _, err := NormalizeAndSanitizeJSON([]byte("I could not find any values."), nil)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		millions bool
		want     float64
		ok       bool
	}{
		{"$1.2 billion", true, 1200, true},
		{"US$450M", true, 450, true},
		{"USD 2.1bn", true, 2100, true},
		{"750 thousand", true, 0.75, true},
		{"-$35.4 million", true, -35.4, true},
		{"15.5%", false, 15.5, true},
		{"1,234.5", false, 1234.5, true},
		{"$950/oz", false, 950, true},
		{"2 billion", false, 2, true},
		{"not disclosed", true, 0, false},
		{"", true, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in, tc.millions)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

func TestValidateJSONAgainstSchema_StrictRejectsStringsAndUnknownKeys(t *testing.T) {
	schema := BuildMiningJSONSchema()
	assert.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"npv":100,"irr":null,"commodities":["Gold"]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"npv":"100"}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"ticker":"ABC"}`)))
}
