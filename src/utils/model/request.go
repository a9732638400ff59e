package model

import "database/sql/driver"

const TableRequest = "requests"

type RequestState string

const (
	RequestStatePending RequestState = "PENDING"
	RequestStateActive  RequestState = "ACTIVE"
	RequestStateExpired RequestState = "EXPIRED"
)

func (self *RequestState) Scan(value interface{}) error {
	*self = RequestState(asString(value))
	return nil
}

func (self RequestState) Value() (driver.Value, error) {
	return string(self), nil
}

// An auctioned service-chain transaction asking for client chain verification
type Request struct {
	Txid          string       `json:"txid" gorm:"primaryKey"`
	GenesisHash   string       `json:"genesis_hash"`
	StartHeight   int64        `json:"start_blockheight"`
	EndHeight     int64        `json:"end_blockheight"`
	NumTickets    uint32       `json:"num_tickets"`
	FeePercentage uint32       `json:"fee_percentage"`
	StartPrice    float64      `json:"start_price"`
	EndPrice      float64      `json:"end_price"`
	DecayConst    float64      `json:"decay_const"`
	Pubkey        string       `json:"pubkey"`
	Value         float64      `json:"value"`
	State         RequestState `json:"state"`
}

func (Request) TableName() string {
	return TableRequest
}

// Scheduling eligibility, expired requests are kept in storage but never challenged
func (self *Request) IsOpen() bool {
	return self.State == RequestStatePending || self.State == RequestStateActive
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}
