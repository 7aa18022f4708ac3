// Package commission computes the platform fee for a booking. It is the only
// place commission arithmetic lives: confirmation, ledger posting and deposit
// aggregation all consume its output, so every sum in the system reconciles
// to the peso.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

var (
	rateWebDirect    = decimal.RequireFromString("0.035")
	rateAdminCreated = decimal.RequireFromString("0.0175")
	vatRate          = decimal.RequireFromString("0.19")
)

// Breakdown is the result of applying a channel's commission to a booking
// amount. All monetary fields are integer pesos.
type Breakdown struct {
	CommissionNet   int64
	Tax             int64
	CommissionTotal int64
	NetPayable      int64
	RateUsed        decimal.Decimal
}

// Rate returns the commission rate for a sales channel.
func Rate(ch domain.Channel) (decimal.Decimal, error) {
	switch ch {
	case domain.ChannelWebDirect:
		return rateWebDirect, nil
	case domain.ChannelAdminCreated:
		return rateAdminCreated, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown channel %q", ch)
	}
}

// Calculate applies the channel rate plus VAT on the fee. Rounding is bankers
// rounding at each peso boundary; the same rule everywhere keeps ledger
// entries and deposit batches reconcilable.
func Calculate(amount int64, ch domain.Channel) (Breakdown, error) {
	if amount < 0 {
		return Breakdown{}, fmt.Errorf("negative amount %d", amount)
	}

	rate, err := Rate(ch)
	if err != nil {
		return Breakdown{}, err
	}

	amt := decimal.NewFromInt(amount)

	net := amt.Mul(rate).RoundBank(0)
	tax := net.Mul(vatRate).RoundBank(0)
	total := net.Add(tax)

	return Breakdown{
		CommissionNet:   net.IntPart(),
		Tax:             tax.IntPart(),
		CommissionTotal: total.IntPart(),
		NetPayable:      amount - total.IntPart(),
		RateUsed:        rate,
	}, nil
}
