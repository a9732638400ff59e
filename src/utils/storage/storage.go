// Package storage persists requests, bids, challenges and responses
// and serves the aggregation queries of the query API.
package storage

import (
	"errors"

	"github.com/commerceblock/coordinator/src/utils/model"
)

var (
	// Requested record does not exist
	ErrNotFound = errors.New("storage: not found")

	// Insert would violate a uniqueness constraint
	ErrDuplicate = errors.New("storage: duplicate record")

	// Guarded state transition lost against a concurrent writer
	ErrConflict = errors.New("storage: conflicting state transition")

	// Backend failure, retryable for reads. For writes the triggering
	// state transition is rolled back and surfaced to the submitter.
	ErrStorage = errors.New("storage: backend failure")
)

// Union of bid txids claimed by the verified responses of one challenge round
type ChallengeResponses struct {
	ChallengeId    string               `json:"challenge_id"`
	Hash           string               `json:"hash"`
	HeightCreated  int64                `json:"height_created"`
	DeadlineHeight int64                `json:"deadline_height"`
	State          model.ChallengeState `json:"state"`
	BidTxids       []string             `json:"bid_txids"`
}

// Cumulative per-request summary of all challenge rounds
type ResponseSummary struct {
	NumChallenges uint32            `json:"num_challenges"`
	BidResponses  map[string]uint32 `json:"bid_responses"`
}

// Storage is the durable source of truth all components read back on restart
type Storage interface {
	// Writes
	SaveRequest(request *model.Request) error
	SaveBids(bids []*model.Bid) error
	SetRequestState(txid string, state model.RequestState) error
	SaveChallenge(challenge *model.Challenge) error

	// Transitions the challenge out of an open state. Reports whether this
	// call won the transition, so exactly one of Closed/TimedOut is recorded.
	TransitionChallenge(id string, to model.ChallengeState) (bool, error)

	// Inserts the response and, when challengeTo is non-empty, transitions the
	// owning challenge in the same transaction. Both commit or neither does.
	SaveResponse(response *model.Response, challengeTo model.ChallengeState) error

	// Reads
	GetRequest(txid string) (*model.Request, error)
	GetRequests(limit, offset int) ([]*model.Request, error)
	CountRequests() (int64, error)
	GetOpenRequests() ([]*model.Request, error)
	GetBids(requestTxid string) ([]*model.Bid, error)
	GetOpenChallenge(requestTxid string) (*model.Challenge, error)
	GetResponses(requestTxid string, verifiedOnly bool) ([]*model.Response, error)
	HasResponse(challengeId, guardnodePubkey string) (bool, error)
	CountChallengeResponses(challengeId string) (int64, error)

	// Aggregations
	GetChallengeResponses(requestTxid string) ([]*ChallengeResponses, error)
	GetResponseSummary(requestTxid string) (*ResponseSummary, error)
}
