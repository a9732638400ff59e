package model

import "github.com/lib/pq"

const TableResponse = "responses"

// A guardnode's reply to one challenge.
// At most one response exists per (challenge, guardnode pubkey).
type Response struct {
	Id              string         `json:"id" gorm:"primaryKey"`
	ChallengeId     string         `json:"challenge_id"`
	RequestTxid     string         `json:"request_txid"`
	GuardnodePubkey string         `json:"guardnode_pubkey"`
	BidTxids        pq.StringArray `json:"bid_txids" gorm:"type:text[]"`
	ReceivedHeight  int64          `json:"received_height"`
	Verified        bool           `json:"verified"`
}

func (Response) TableName() string {
	return TableResponse
}
