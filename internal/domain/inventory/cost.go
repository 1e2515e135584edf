package inventory

import (
	"pressledger/internal/core/types"
)

// weightedAvg recomputes the running average cost after a receipt:
//
//	new_avg = (old_avg*old_qty + unit_cost*qty) / (old_qty + qty)
//
// When nothing is on hand (or the balance is negative after a permitted
// oversell), the receipt cost becomes the new average outright.
func weightedAvg(oldAvg types.Money, oldQty types.Quantity, unitCost types.Money, qty types.Quantity) types.Money {
	if !oldQty.IsPositive() {
		return types.RoundMoney(unitCost)
	}

	newQty := oldQty + qty
	if !newQty.IsPositive() {
		return types.RoundMoney(unitCost)
	}

	oldValue := oldAvg.Mul(oldQty.Decimal())
	inValue := unitCost.Mul(qty.Decimal())
	return types.RoundMoney(oldValue.Add(inValue).Div(newQty.Decimal()))
}
