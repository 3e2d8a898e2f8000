package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeIntraStateSplitsEvenly(t *testing.T) {
	b := Compute(d("900"), "Karnataka", " karnataka ", DefaultRate)

	assert.Equal(t, enums.GSTModeCGSTSGST, b.Mode)
	assert.True(t, b.CGST.Equal(d("81")), b.CGST.String())
	assert.True(t, b.SGST.Equal(d("81")), b.SGST.String())
	assert.True(t, b.IGST.IsZero())
	assert.True(t, b.Total.Equal(d("162")))
	assert.True(t, b.Balanced())
}

func TestComputeInterStateUsesIGST(t *testing.T) {
	b := Compute(d("900"), "KA", "MH", DefaultRate)

	assert.Equal(t, enums.GSTModeIGST, b.Mode)
	assert.True(t, b.IGST.Equal(d("162")))
	assert.True(t, b.CGST.IsZero())
	assert.True(t, b.SGST.IsZero())
	assert.True(t, b.Balanced())
}

func TestComputeRemainderLandsOnCGST(t *testing.T) {
	// 1.01 × 18% = 0.1818 → 0.18; halves 0.09 each.
	b := Compute(d("1.01"), "KA", "KA", DefaultRate)
	assert.True(t, b.SGST.Equal(d("0.09")))
	assert.True(t, b.CGST.Equal(d("0.09")))

	// 1.07 × 18% = 0.1926 → 0.19; SGST 0.09, CGST 0.10.
	b = Compute(d("1.07"), "KA", "KA", DefaultRate)
	assert.True(t, b.SGST.Equal(d("0.09")), b.SGST.String())
	assert.True(t, b.CGST.Equal(d("0.1")), b.CGST.String())
	assert.True(t, b.Balanced())
}

func TestComputeSinglePaisaIntraStateTaxIsAllCGST(t *testing.T) {
	// 0.05 × 18% = 0.009 → 0.01; a single paisa cannot be halved.
	for _, taxable := range []string{"0.05", "0.03", "0.08"} {
		b := Compute(d(taxable), "KA", "ka", DefaultRate)
		assert.Equal(t, enums.GSTModeCGSTSGST, b.Mode)
		assert.True(t, b.Total.Equal(d("0.01")), "%s: total %s", taxable, b.Total)
		assert.True(t, b.CGST.Equal(d("0.01")), "%s: cgst %s", taxable, b.CGST)
		assert.True(t, b.SGST.IsZero(), "%s: sgst %s", taxable, b.SGST)
		assert.True(t, b.IGST.IsZero())
		assert.True(t, b.Balanced())
	}

	b := Compute(d("0.12"), "KA", "KA", DefaultRate)
	assert.True(t, b.Total.Equal(d("0.02")))
	assert.True(t, b.CGST.Equal(d("0.01")))
	assert.True(t, b.SGST.Equal(d("0.01")))
}

func TestComputeZeroAndNegativeTaxable(t *testing.T) {
	b := Compute(d("-10"), "KA", "KA", DefaultRate)
	assert.True(t, b.Total.IsZero())
	assert.True(t, b.Taxable.IsZero())
	assert.True(t, b.Balanced())
}

func TestModeForUnknownStateIsInterState(t *testing.T) {
	assert.Equal(t, enums.GSTModeIGST, ModeFor("", ""))
	assert.Equal(t, enums.GSTModeIGST, ModeFor("KA", ""))
	assert.Equal(t, enums.GSTModeCGSTSGST, ModeFor("tn", "TN"))
}

func TestCombineMarksMixedModes(t *testing.T) {
	intra := Compute(d("100"), "KA", "KA", DefaultRate)
	inter := Compute(d("200"), "KA", "MH", DefaultRate)

	same := Combine(intra, intra)
	assert.Equal(t, enums.GSTModeCGSTSGST, same.Mode)
	assert.True(t, same.Total.Equal(d("36")))

	mixed := Combine(intra, inter)
	assert.Equal(t, enums.GSTModeMixed, mixed.Mode)
	assert.True(t, mixed.Total.Equal(d("54")))
	assert.True(t, mixed.IGST.Equal(d("36")))
	assert.True(t, mixed.Taxable.Equal(d("300")))
	assert.True(t, mixed.Balanced())
	assert.False(t, mixed.CGST.IsZero())
	assert.False(t, mixed.SGST.IsZero())
	assert.False(t, mixed.IGST.IsZero())
	for _, part := range []Breakdown{intra, inter} {
		assert.True(t, part.Balanced(), "%s part unbalanced", part.Mode)
	}
}
