// Package auction reproduces the service chain's ticket auction arithmetic.
// The coordinator never enforces payments, these values are informational
// and used to flag anomalies between the chain and the tracked state.
package auction

import (
	"math"

	"github.com/commerceblock/coordinator/src/utils/model"
)

// Price returns the ticket price of a request at the given height.
//
// The curve is fixed as
//
//	price(h) = end_price + (start_price - end_price) * (1 - t)^decay_const
//
// with t the height progress through the auction window, clamped to the
// start price before the window and to the end price after it. A decay
// constant of 1 gives a linear slide, larger values front-load the drop.
func Price(request *model.Request, height int64) float64 {
	if request.EndHeight <= request.StartHeight {
		return request.EndPrice
	}
	if height <= request.StartHeight {
		return request.StartPrice
	}
	if height >= request.EndHeight {
		return request.EndPrice
	}

	decay := request.DecayConst
	if decay <= 0 {
		decay = 1
	}

	t := float64(height-request.StartHeight) / float64(request.EndHeight-request.StartHeight)
	return request.EndPrice + (request.StartPrice-request.EndPrice)*math.Pow(1-t, decay)
}
