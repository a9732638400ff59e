package chain

import (
	"errors"
	"fmt"
)

var (
	// Transient node failure, callers retry with backoff
	ErrChainUnavailable = errors.New("chain unavailable")

	// Configured genesis hash disagrees with the observed chain, fatal at startup
	ErrChainMismatch = errors.New("chain genesis hash mismatch")
)

// Error returned by the node inside a JSON-RPC response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (self *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", self.Code, self.Message)
}
