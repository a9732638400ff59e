package coordinator

import "errors"

// Submission and ingestion rejections. All are terminal for the triggering
// submission and have no daemon-level effect, the guardnode is expected to
// resubmit a corrected proof.
var (
	// Request txid is unknown or the request already expired
	ErrRequestNotFound = errors.New("request not found")

	// No open challenge for the request, or the deadline has passed
	ErrChallengeExpired = errors.New("challenge expired")

	// A response from this guardnode was already accepted for this challenge
	ErrDuplicateResponse = errors.New("duplicate response")

	// A claimed bid does not belong to the request or to the submitting guardnode
	ErrUnauthorizedBid = errors.New("unauthorized bid")

	// Proof signature does not verify against the guardnode pubkey
	ErrBadSignature = errors.New("bad signature")

	// An active or pending request already carries this genesis hash
	ErrDuplicateGenesisHash = errors.New("duplicate genesis hash")
)
