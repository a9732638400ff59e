package model

const TableBid = "bids"

// A guardnode's claim on tickets of one request. Never mutated after creation.
type Bid struct {
	Txid          string  `json:"txid" gorm:"primaryKey"`
	RequestTxid   string  `json:"request_txid"`
	FeePubkey     string  `json:"fee_pubkey"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangeAddress string  `json:"change_address"`
	Fee           float64 `json:"fee"`

	// Set when the bid referenced an unknown or expired request, diagnostic only
	Unattached bool `json:"unattached,omitempty"`
}

func (Bid) TableName() string {
	return TableBid
}
