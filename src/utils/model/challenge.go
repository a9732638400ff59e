package model

import "database/sql/driver"

const TableChallenge = "challenges"

type ChallengeState string

const (
	ChallengeStateCreated           ChallengeState = "CREATED"
	ChallengeStateAwaitingResponses ChallengeState = "AWAITING_RESPONSES"
	ChallengeStateClosed            ChallengeState = "CLOSED"
	ChallengeStateTimedOut          ChallengeState = "TIMED_OUT"
)

func (self *ChallengeState) Scan(value interface{}) error {
	*self = ChallengeState(asString(value))
	return nil
}

func (self ChallengeState) Value() (driver.Value, error) {
	return string(self), nil
}

// States that still accept responses
func (self ChallengeState) IsOpen() bool {
	return self == ChallengeStateCreated || self == ChallengeStateAwaitingResponses
}

// OpenChallengeStates lists the non-terminal states, used for guarded transitions
var OpenChallengeStates = []ChallengeState{ChallengeStateCreated, ChallengeStateAwaitingResponses}

// A periodic verification round for one request
type Challenge struct {
	Id             string         `json:"id" gorm:"primaryKey"`
	RequestTxid    string         `json:"request_txid"`
	Hash           string         `json:"hash"`
	HeightCreated  int64          `json:"height_created"`
	DeadlineHeight int64          `json:"deadline_height"`
	State          ChallengeState `json:"state"`
}

func (Challenge) TableName() string {
	return TableChallenge
}
