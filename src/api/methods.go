package api

import (
	"encoding/json"
	"errors"

	"github.com/commerceblock/coordinator/src/utils/auction"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

// Requests per getrequests page
const PageSize = 10

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeNotFound       = -1
)

func errorResponse(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{Jsonrpc: "2.0", Id: id, Error: &rpcError{Code: code, Message: message}}
}

// The method set is closed, anything else is method-not-found
func (self *Server) dispatch(req *rpcRequest) (result interface{}, rpcErr *rpcError) {
	switch req.Method {
	case "getrequests":
		return self.getRequests(req.Params)
	case "getrequest":
		return self.getRequest(req.Params)
	case "getrequestresponse":
		return self.getRequestResponse(req.Params)
	case "getrequestresponses":
		return self.getRequestResponses(req.Params)
	case "get_challenge_responses":
		return self.getChallengeResponses(req.Params)
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
}

func (self *Server) fail(err error) *rpcError {
	if errors.Is(err, storage.ErrNotFound) {
		return &rpcError{Code: codeNotFound, Message: "request not found"}
	}
	self.Log.WithError(err).Error("API query failed")
	return &rpcError{Code: codeInternal, Message: "internal error"}
}

type pageParams struct {
	Page int `json:"page"`
}

type txidParams struct {
	Txid string `json:"txid"`
}

type responsesParams struct {
	Txid         string `json:"txid"`
	VerifiedOnly bool   `json:"verified_only"`
}

func decodeParams(raw json.RawMessage, out interface{}) *rpcError {
	if len(raw) == 0 {
		return nil
	}
	err := json.Unmarshal(raw, out)
	if err != nil {
		return &rpcError{Code: codeInvalidParams, Message: "invalid params"}
	}
	return nil
}

type requestsPage struct {
	Requests []*model.Request `json:"requests"`
	Page     int              `json:"page"`
	Pages    int64            `json:"pages"`
}

func (self *Server) getRequests(raw json.RawMessage) (interface{}, *rpcError) {
	params := pageParams{Page: 1}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Page < 1 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "page must be positive"}
	}

	total, err := self.store.CountRequests()
	if err != nil {
		return nil, self.fail(err)
	}

	requests, err := self.store.GetRequests(PageSize, (params.Page-1)*PageSize)
	if err != nil {
		return nil, self.fail(err)
	}

	pages := (total + PageSize - 1) / PageSize
	return requestsPage{Requests: requests, Page: params.Page, Pages: pages}, nil
}

type requestDetail struct {
	Request *model.Request `json:"request"`
	Bids    []*model.Bid   `json:"bids"`
}

func (self *Server) getRequest(raw json.RawMessage) (interface{}, *rpcError) {
	var params txidParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Txid == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "txid required"}
	}

	request, err := self.store.GetRequest(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}

	bids, err := self.store.GetBids(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}

	return requestDetail{Request: request, Bids: bids}, nil
}

type responseSummary struct {
	*storage.ResponseSummary

	// Per-bid share of the request fee, proportional to responses
	FeeShares map[string]float64 `json:"fee_shares"`
}

func (self *Server) getRequestResponse(raw json.RawMessage) (interface{}, *rpcError) {
	var params txidParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Txid == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "txid required"}
	}

	// Existence check first so an unknown txid is not an empty summary
	_, err := self.store.GetRequest(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}

	summary, err := self.store.GetResponseSummary(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}
	return responseSummary{summary, auction.FeeShares(summary)}, nil
}

func (self *Server) getRequestResponses(raw json.RawMessage) (interface{}, *rpcError) {
	var params responsesParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Txid == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "txid required"}
	}

	_, err := self.store.GetRequest(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}

	responses, err := self.store.GetResponses(params.Txid, params.VerifiedOnly)
	if err != nil {
		return nil, self.fail(err)
	}
	if responses == nil {
		responses = []*model.Response{}
	}
	return responses, nil
}

func (self *Server) getChallengeResponses(raw json.RawMessage) (interface{}, *rpcError) {
	var params txidParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Txid == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "txid required"}
	}

	_, err := self.store.GetRequest(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}

	challenges, err := self.store.GetChallengeResponses(params.Txid)
	if err != nil {
		return nil, self.fail(err)
	}
	if challenges == nil {
		challenges = []*storage.ChallengeResponses{}
	}
	return challenges, nil
}
