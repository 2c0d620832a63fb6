package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

func f(v float64) *float64 { return utils.Ptr(v) }
func s(v string) *string   { return utils.Ptr(v) }

func TestMerge_MaxWinsAndAbsentIgnored(t *testing.T) {
	a := entity.ExtractionResult{NPV: f(100)}
	b := entity.ExtractionResult{NPV: f(150), IRR: f(20)}

	got := Merge(a, b)
	require.NotNil(t, got.NPV)
	assert.Equal(t, 150.0, *got.NPV)
	require.NotNil(t, got.IRR)
	assert.Equal(t, 20.0, *got.IRR)
	assert.Nil(t, got.Capex)
	assert.Nil(t, got.Location)
	assert.Nil(t, got.Commodities)
}

func TestMerge_ZeroIsAKnownValue(t *testing.T) {
	got := Merge(entity.ExtractionResult{Opex: f(0)}, entity.ExtractionResult{})
	require.NotNil(t, got.Opex)
	assert.Equal(t, 0.0, *got.Opex)

	neg := Merge(entity.ExtractionResult{NPV: f(-20)}, entity.ExtractionResult{NPV: f(-5)})
	assert.Equal(t, -5.0, *neg.NPV)
}

func TestMerge_CommoditiesUnionCaseInsensitive(t *testing.T) {
	got := Merge(
		entity.ExtractionResult{Commodities: []string{"Gold"}},
		entity.ExtractionResult{},
		entity.ExtractionResult{Commodities: []string{"gold", "Silver", " "}},
	)
	assert.Equal(t, []string{"Gold", "Silver"}, got.Commodities)
}

func TestMerge_StringsFirstNonAbsentWins(t *testing.T) {
	got := Merge(
		entity.ExtractionResult{},
		entity.ExtractionResult{Location: s("Nevada, USA"), Stage: s("PEA")},
		entity.ExtractionResult{Location: s("Arizona, USA"), Resource: s("43.7 Mt @ 2.5% Cu")},
	)
	assert.Equal(t, "Nevada, USA", *got.Location)
	assert.Equal(t, "PEA", *got.Stage)
	assert.Equal(t, "43.7 Mt @ 2.5% Cu", *got.Resource)
	assert.Nil(t, got.Reserve)

	// an empty string is a value, not absence
	e := Merge(entity.ExtractionResult{Description: s("")}, entity.ExtractionResult{Description: s("later")})
	assert.Equal(t, "", *e.Description)
}

func TestMerge_NoInputIsEmpty(t *testing.T) {
	assert.True(t, Merge().IsEmpty())
}

func TestMerge_NumericAndUnionOrderIndependent(t *testing.T) {
	rs := []entity.ExtractionResult{
		{NPV: f(100), Commodities: []string{"Gold"}, Capex: f(300)},
		{NPV: f(250), IRR: f(12.5)},
		{IRR: f(18), Commodities: []string{"Silver", "GOLD"}, MineLife: f(11)},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	base := Merge(rs...)
	for _, p := range perms {
		got := Merge(rs[p[0]], rs[p[1]], rs[p[2]])
		assert.Equal(t, *base.NPV, *got.NPV)
		assert.Equal(t, *base.IRR, *got.IRR)
		assert.Equal(t, *base.Capex, *got.Capex)
		assert.Equal(t, *base.MineLife, *got.MineLife)
		assert.ElementsMatch(t, []string{"gold", "silver"}, lower(got.Commodities))
	}
}

func TestMerge_AssociativeAndIdempotent(t *testing.T) {
	a := entity.ExtractionResult{NPV: f(100), Location: s("Chile"), Commodities: []string{"Copper"}}
	b := entity.ExtractionResult{NPV: f(90), IRR: f(22), Location: s("Peru")}
	c := entity.ExtractionResult{Capex: f(1500), Commodities: []string{"Molybdenum", "copper"}}

	left := MergeInto(MergeInto(a, b), c)
	right := MergeInto(a, Merge(b, c))
	assert.Equal(t, left, right)

	twice := Merge(a, b, c, a, b, c)
	assert.Equal(t, left, twice)
}

func TestMergeInto_DoesNotAliasInputs(t *testing.T) {
	a := entity.ExtractionResult{NPV: f(1), Commodities: []string{"Gold"}}
	got := MergeInto(a, entity.ExtractionResult{})
	*got.NPV = 99
	got.Commodities[0] = "Lead"
	assert.Equal(t, 1.0, *a.NPV)
	assert.Equal(t, "Gold", a.Commodities[0])
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}
