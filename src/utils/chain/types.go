package chain

import "encoding/json"

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Id     int64           `json:"id"`
}

type ScriptPubKey struct {
	Hex       string   `json:"hex"`
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

type Input struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Sequence uint32 `json:"sequence"`
}

type Output struct {
	Value        float64      `json:"value"`
	N            uint32       `json:"n"`
	Asset        string       `json:"asset"`
	ScriptPubKey ScriptPubKey `json:"scriptPubKey"`
}

// Decoded transaction as returned by a verbose getrawtransaction
type Transaction struct {
	Txid     string   `json:"txid"`
	Locktime uint32   `json:"locktime"`
	Vin      []Input  `json:"vin"`
	Vout     []Output `json:"vout"`
}

type Unspent struct {
	Txid    string  `json:"txid"`
	Vout    uint32  `json:"vout"`
	Asset   string  `json:"asset"`
	Amount  float64 `json:"amount"`
	Address string  `json:"address"`
}

// Service chain view of an auctioned request transaction
type RequestResult struct {
	Txid             string  `json:"txid"`
	GenesisBlock     string  `json:"genesisBlock"`
	StartBlockHeight int64   `json:"startBlockHeight"`
	EndBlockHeight   int64   `json:"endBlockHeight"`
	NumTickets       uint32  `json:"numTickets"`
	FeePercentage    uint32  `json:"feePercentage"`
	StartPrice       float64 `json:"startPrice"`
	EndPrice         float64 `json:"endPrice"`
	DecayConst       float64 `json:"decayConst"`
	AuctionPrice     float64 `json:"auctionPrice"`
	Pubkey           string  `json:"pubkey"`
	Value            float64 `json:"value"`
}

// Service chain view of a winning bid on a request
type BidResult struct {
	Txid          string  `json:"txid"`
	FeePubKey     string  `json:"feePubKey"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangeAddress string  `json:"changeAddress"`
	Fee           float64 `json:"fee"`
}
