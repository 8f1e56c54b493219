package engine

import (
	"math"

	"ashare/internal/config"
)

// CommissionModel prices A-share fills: brokerage commission with a minimum
// charge, transfer fee on both sides and stamp duty on sells only.
type CommissionModel struct {
	rates config.Commission
}

// NewCommissionModel creates a CommissionModel from configured rates.
func NewCommissionModel(rates config.Commission) CommissionModel {
	return CommissionModel{rates: rates}
}

// Fee returns the total fee for a fill of shares at price. A negative share
// count is a sell. Zero shares cost nothing.
func (m CommissionModel) Fee(shares int64, price float64) float64 {
	if shares == 0 {
		return 0
	}
	amount := math.Abs(float64(shares)) * price

	fee := math.Max(amount*m.rates.Rate, m.rates.MinFee)
	fee += amount * m.rates.TransferFee
	if shares < 0 {
		fee += amount * m.rates.StampDuty
	}
	return fee
}
