package auction

import "github.com/commerceblock/coordinator/src/utils/storage"

// FeeShares splits a request's guardnode fee between its bids in proportion
// to the number of challenge rounds each bid responded to. Bids that never
// responded receive nothing. The shares sum to 1 when any response exists.
func FeeShares(summary *storage.ResponseSummary) map[string]float64 {
	shares := make(map[string]float64, len(summary.BidResponses))
	if summary.NumChallenges == 0 {
		return shares
	}

	var total uint32
	for _, count := range summary.BidResponses {
		total += count
	}
	if total == 0 {
		return shares
	}

	for txid, count := range summary.BidResponses {
		shares[txid] = float64(count) / float64(total)
	}
	return shares
}
