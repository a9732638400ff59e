package coordinator

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChallengeHash derives the deterministic hash guardnodes sign over for one
// challenge round: sha256d over the request txid bytes and the creation height.
func ChallengeHash(requestTxid string, height int64) (string, error) {
	txid, err := chainhash.NewHashFromStr(requestTxid)
	if err != nil {
		return "", err
	}

	data := make([]byte, 0, chainhash.HashSize+8)
	data = append(data, txid[:]...)
	data = binary.BigEndian.AppendUint64(data, uint64(height))

	hash := chainhash.DoubleHashH(data)
	return hash.String(), nil
}

// ChallengeProof is a guardnode's submission claiming serviced bids for
// the open challenge of a request.
type ChallengeProof struct {
	RequestTxid string   `json:"request_txid"`
	Pubkey      string   `json:"pubkey"`
	BidTxids    []string `json:"bid_txids"`
	Hash        string   `json:"hash"`
	Sig         string   `json:"sig"`
}

// Validate checks the wire format of every field before any state is touched
func (self *ChallengeProof) Validate() (err error) {
	_, err = chainhash.NewHashFromStr(self.RequestTxid)
	if err != nil {
		return fmt.Errorf("request_txid: %v", err)
	}
	_, err = chainhash.NewHashFromStr(self.Hash)
	if err != nil {
		return fmt.Errorf("hash: %v", err)
	}
	if len(self.BidTxids) == 0 {
		return fmt.Errorf("bid_txids: empty")
	}
	for _, txid := range self.BidTxids {
		_, err = chainhash.NewHashFromStr(txid)
		if err != nil {
			return fmt.Errorf("bid_txids: %v", err)
		}
	}
	_, err = self.pubkey()
	if err != nil {
		return fmt.Errorf("pubkey: %v", err)
	}
	_, err = self.signature()
	if err != nil {
		return fmt.Errorf("sig: %v", err)
	}
	return nil
}

// VerifySignature checks the DER signature over the challenge hash bytes
// against the guardnode pubkey
func (self *ChallengeProof) VerifySignature() (err error) {
	pubkey, err := self.pubkey()
	if err != nil {
		return ErrBadSignature
	}
	sig, err := self.signature()
	if err != nil {
		return ErrBadSignature
	}
	hash, err := chainhash.NewHashFromStr(self.Hash)
	if err != nil {
		return ErrBadSignature
	}

	if !sig.Verify(hash[:], pubkey) {
		return ErrBadSignature
	}
	return nil
}

func (self *ChallengeProof) pubkey() (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(self.Pubkey)
	if err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(raw)
}

func (self *ChallengeProof) signature() (*ecdsa.Signature, error) {
	raw, err := hex.DecodeString(self.Sig)
	if err != nil {
		return nil, err
	}
	return ecdsa.ParseDERSignature(raw)
}
