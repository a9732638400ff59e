package monitoring

import (
	"go.uber.org/atomic"
)

type CoordinatorState struct {
	ServiceChainHeight      atomic.Uint64 `json:"service_chain_height"`
	ClientChainHeight       atomic.Uint64 `json:"client_chain_height"`
	LastHeightTimestamp     atomic.Uint64 `json:"last_height_timestamp"`
	RequestsTracked         atomic.Uint64 `json:"requests_tracked"`
	BidsTracked             atomic.Uint64 `json:"bids_tracked"`
	ChallengesCreated       atomic.Uint64 `json:"challenges_created"`
	ChallengesClosed        atomic.Uint64 `json:"challenges_closed"`
	ChallengesTimedOut      atomic.Uint64 `json:"challenges_timed_out"`
	ResponsesAccepted       atomic.Uint64 `json:"responses_accepted"`
	RequestsExpired         atomic.Uint64 `json:"requests_expired"`
	WatchdogRestarts        atomic.Uint64 `json:"watchdog_restarts"`
}

type CoordinatorErrors struct {
	ChainErrors            atomic.Uint64 `json:"chain_errors"`
	DbErrors               atomic.Uint64 `json:"db_errors"`
	ResponsesRejected      atomic.Uint64 `json:"responses_rejected"`
	DuplicateGenesisHashes atomic.Uint64 `json:"duplicate_genesis_hashes"`
	UnattachableBids       atomic.Uint64 `json:"unattachable_bids"`
}

type Report struct {
	State  CoordinatorState  `json:"state"`
	Errors CoordinatorErrors `json:"errors"`
}
