package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian/internal/ledger"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0.01", true},
		{"100", true},
		{"100.5", true},
		{"99999999.99", true},
		{"0", false},
		{"0.00", false},
		{"-0.01", false},
		{"-100", false},
		{"0.001", false},
		{"10.125", false},
	}
	for _, tc := range cases {
		err := ledger.ValidateAmount(decimal.RequireFromString(tc.amount))
		if tc.ok {
			require.NoError(t, err, "amount %s", tc.amount)
		} else {
			require.ErrorIs(t, err, ledger.ErrInvalidAmount, "amount %s", tc.amount)
		}
	}
}

func TestValidateAmountNormalizedScale(t *testing.T) {
	// 1.10 expressed with a larger exponent still has scale 2.
	amount := decimal.New(1100, -3) // 1.100
	require.NoError(t, ledger.ValidateAmount(amount))
}

func TestRequireActive(t *testing.T) {
	require.NoError(t, ledger.RequireActive(ledger.StatusActive))
	require.ErrorIs(t, ledger.RequireActive(ledger.StatusSuspended), ledger.ErrSuspended)
	require.ErrorIs(t, ledger.RequireActive(ledger.Status("closed")), ledger.ErrSuspended)
}

func TestRequireDistinct(t *testing.T) {
	require.NoError(t, ledger.RequireDistinct("1000000001", "2000000002"))
	require.ErrorIs(t, ledger.RequireDistinct("1000000001", "1000000001"), ledger.ErrSameAccount)
}
