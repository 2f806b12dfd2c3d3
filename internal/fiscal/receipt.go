package fiscal

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/model"
)

// ErrUnsupportedVAT is returned when a line carries a VAT rate the TSS has
// no category for.
var ErrUnsupportedVAT = errors.New("unsupported vat rate")

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// vatCategories maps German VAT percentages to TSS categories in the order
// they are reported.
var vatCategories = []struct {
	rate decimal.Decimal
	name string
}{
	{decimal.NewFromInt(19), "NORMAL"},
	{decimal.NewFromInt(7), "REDUCED_1"},
	{decimal.RequireFromString("10.7"), "SPECIAL_RATE_1"},
	{decimal.RequireFromString("5.5"), "SPECIAL_RATE_2"},
	{decimal.Zero, "NULL"},
}

// NormalizeVAT returns the percentage to book a line under.  A missing or
// negative rate falls back to def; fractions such as 0.19 are read as 19%.
func NormalizeVAT(rate *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if rate == nil || rate.IsNegative() {
		return def
	}
	r := *rate
	if r.IsPositive() && r.LessThan(one) {
		r = r.Mul(hundred)
	}
	return r.Round(2)
}

func vatCategory(rate decimal.Decimal) (string, error) {
	for _, c := range vatCategories {
		if c.rate.Equal(rate) {
			return c.name, nil
		}
	}
	return "", fmt.Errorf("%w: %s%%", ErrUnsupportedVAT, rate.String())
}

// paymentType maps a register payment method to the TSS payment type.
func paymentType(method string) string {
	if method == model.PaymentCash {
		return "CASH"
	}
	return "NON_CASH"
}

// BuildReceipt groups the gross line totals of req by VAT category.  A
// sale without lines is booked entirely under the default rate.
func BuildReceipt(req SignRequest, def decimal.Decimal) (Receipt, error) {
	sums := make(map[string]decimal.Decimal, len(vatCategories))
	if len(req.Items) == 0 {
		cat, err := vatCategory(NormalizeVAT(nil, def))
		if err != nil {
			return Receipt{}, err
		}
		sums[cat] = req.Amount
	}
	for _, it := range req.Items {
		cat, err := vatCategory(NormalizeVAT(it.VATRate, def))
		if err != nil {
			return Receipt{}, fmt.Errorf("line %q: %w", it.Name, err)
		}
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		sums[cat] = sums[cat].Add(line)
	}

	r := Receipt{
		ReceiptType: "RECEIPT",
		AmountsPerPaymentType: []PaymentAmount{
			{PaymentType: paymentType(req.PaymentMethod), Amount: req.Amount.StringFixed(2)},
		},
	}
	for _, c := range vatCategories {
		if amt, ok := sums[c.name]; ok {
			r.AmountsPerVATRate = append(r.AmountsPerVATRate, VATAmount{VATRate: c.name, Amount: amt.StringFixed(2)})
		}
	}
	return r, nil
}
