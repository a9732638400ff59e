package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// JSON-RPC client for one blockchain node.
// The coordinator runs two of these, one per chain, with independent credentials.
type Client struct {
	client  *resty.Client
	config  *config.Chain
	log     *logrus.Entry
	limiter *rate.Limiter

	// Immutable lookups worth keeping around
	cache *cache.Cache

	lastId int64
}

func NewClient(config *config.Chain, name string) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger(name)
	self.limiter = rate.NewLimiter(rate.Limit(config.RateRps), config.RateCap)
	self.cache = cache.New(10*time.Minute, 15*time.Minute)

	self.client = resty.New().
		SetTimeout(config.Timeout).
		SetBaseURL(config.Host).
		SetBasicAuth(config.User, config.Pass).
		SetHeader("Content-Type", "application/json")

	return
}

func (self *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) (err error) {
	err = self.limiter.Wait(ctx)
	if err != nil {
		return
	}

	body := rpcRequest{
		Jsonrpc: "1.0",
		Id:      atomic.AddInt64(&self.lastId, 1),
		Method:  method,
		Params:  params,
	}

	var response rpcResponse
	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&response).
		Post("/")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrChainUnavailable, method, err)
	}
	if resp.IsError() && response.Error == nil {
		// Ocean nodes answer some failures with an error status and a
		// regular JSON-RPC error body, those are not transient
		var failed rpcResponse
		if json.Unmarshal(resp.Body(), &failed) == nil && failed.Error != nil {
			return failed.Error
		}
		return fmt.Errorf("%w: %s: unexpected status %s", ErrChainUnavailable, method, resp.Status())
	}
	if response.Error != nil {
		return response.Error
	}

	if out != nil {
		err = json.Unmarshal(response.Result, out)
		if err != nil {
			return fmt.Errorf("%w: %s: malformed result: %v", ErrChainUnavailable, method, err)
		}
	}
	return nil
}

// Current chain height
func (self *Client) GetBlockCount(ctx context.Context) (height int64, err error) {
	err = self.call(ctx, "getblockcount", nil, &height)
	return
}

func (self *Client) GetBlockHash(ctx context.Context, height int64) (hash string, err error) {
	key := fmt.Sprintf("blockhash-%d", height)
	if cached, ok := self.cache.Get(key); ok {
		return cached.(string), nil
	}

	err = self.call(ctx, "getblockhash", []interface{}{height}, &hash)
	if err != nil {
		return
	}

	self.cache.Set(key, hash, cache.DefaultExpiration)
	return
}

// Block hash at height 0
func (self *Client) GetGenesisHash(ctx context.Context) (hash string, err error) {
	return self.GetBlockHash(ctx, 0)
}

// Decoded transaction lookup
func (self *Client) GetRawTransaction(ctx context.Context, txid string) (tx *Transaction, err error) {
	if cached, ok := self.cache.Get("tx-" + txid); ok {
		return cached.(*Transaction), nil
	}

	tx = new(Transaction)
	err = self.call(ctx, "getrawtransaction", []interface{}{txid, 1}, tx)
	if err != nil {
		return nil, err
	}

	self.cache.Set("tx-"+txid, tx, cache.DefaultExpiration)
	return
}

func (self *Client) ListUnspent(ctx context.Context) (unspent []Unspent, err error) {
	err = self.call(ctx, "listunspent", nil, &unspent)
	return
}

// Active service requests as seen by the service chain
func (self *Client) GetRequests(ctx context.Context) (requests []RequestResult, err error) {
	err = self.call(ctx, "getrequests", nil, &requests)
	return
}

// Winning bids of one service request
func (self *Client) GetRequestBids(ctx context.Context, txid string) (bids []BidResult, err error) {
	var result struct {
		Txid string      `json:"txid"`
		Bids []BidResult `json:"bids"`
	}
	err = self.call(ctx, "getrequestbids", []interface{}{txid}, &result)
	if err != nil {
		return
	}
	return result.Bids, nil
}

// Compares the configured genesis hash with the observed one.
// A mismatch means the node serves a different chain, there is no point continuing.
func (self *Client) VerifyGenesis(ctx context.Context, expected string) (err error) {
	if expected == "" {
		return nil
	}

	observed, err := self.GetGenesisHash(ctx)
	if err != nil {
		return
	}

	if observed != expected {
		return fmt.Errorf("%w: expected %s, observed %s", ErrChainMismatch, expected, observed)
	}

	self.log.WithField("genesis", observed).Info("Genesis hash verified")
	return nil
}
