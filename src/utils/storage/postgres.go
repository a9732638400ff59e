package storage

import (
	"errors"
	"fmt"

	"github.com/commerceblock/coordinator/src/utils/model"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres-backed Storage implementation
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func (self *Postgres) SaveRequest(request *model.Request) (err error) {
	err = self.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "txid"}},
			UpdateAll: true,
		}).
		Create(request).
		Error
	return wrap(err)
}

func (self *Postgres) SaveBids(bids []*model.Bid) (err error) {
	if len(bids) == 0 {
		return nil
	}
	err = self.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "txid"}},
			DoNothing: true,
		}).
		Create(bids).
		Error
	return wrap(err)
}

func (self *Postgres) SetRequestState(txid string, state model.RequestState) (err error) {
	err = self.db.
		Model(&model.Request{}).
		Where("txid = ?", txid).
		Update("state", state).
		Error
	return wrap(err)
}

func (self *Postgres) SaveChallenge(challenge *model.Challenge) (err error) {
	err = self.db.Create(challenge).Error
	return wrap(err)
}

func (self *Postgres) TransitionChallenge(id string, to model.ChallengeState) (won bool, err error) {
	result := self.db.
		Model(&model.Challenge{}).
		Where("id = ? AND state IN ?", id, model.OpenChallengeStates).
		Update("state", to)
	if result.Error != nil {
		return false, wrap(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (self *Postgres) SaveResponse(response *model.Response, challengeTo model.ChallengeState) (err error) {
	err = self.db.Transaction(func(tx *gorm.DB) (err error) {
		err = tx.Create(response).Error
		if err != nil {
			return
		}

		if challengeTo == "" {
			return nil
		}

		result := tx.
			Model(&model.Challenge{}).
			Where("id = ? AND state IN ?", response.ChallengeId, model.OpenChallengeStates).
			Update("state", challengeTo)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrConflict
		}
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	return wrap(err)
}

func (self *Postgres) GetRequest(txid string) (request *model.Request, err error) {
	request = new(model.Request)
	err = self.db.First(request, "txid = ?", txid).Error
	if err != nil {
		return nil, wrap(err)
	}
	return
}

func (self *Postgres) GetRequests(limit, offset int) (requests []*model.Request, err error) {
	query := self.db.Order("start_height ASC, txid ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err = query.Find(&requests).Error
	return requests, wrap(err)
}

func (self *Postgres) CountRequests() (count int64, err error) {
	err = self.db.Model(&model.Request{}).Count(&count).Error
	return count, wrap(err)
}

func (self *Postgres) GetOpenRequests() (requests []*model.Request, err error) {
	err = self.db.
		Where("state IN ?", []model.RequestState{model.RequestStatePending, model.RequestStateActive}).
		Order("start_height ASC, txid ASC").
		Find(&requests).
		Error
	return requests, wrap(err)
}

func (self *Postgres) GetBids(requestTxid string) (bids []*model.Bid, err error) {
	err = self.db.
		Where("request_txid = ? AND NOT unattached", requestTxid).
		Order("txid ASC").
		Find(&bids).
		Error
	return bids, wrap(err)
}

func (self *Postgres) GetOpenChallenge(requestTxid string) (challenge *model.Challenge, err error) {
	challenge = new(model.Challenge)
	err = self.db.
		Where("request_txid = ? AND state IN ?", requestTxid, model.OpenChallengeStates).
		Order("height_created DESC").
		First(challenge).
		Error
	if err != nil {
		return nil, wrap(err)
	}
	return
}

func (self *Postgres) GetResponses(requestTxid string, verifiedOnly bool) (responses []*model.Response, err error) {
	query := self.db.Where("request_txid = ?", requestTxid)
	if verifiedOnly {
		query = query.Where("verified")
	}
	err = query.Order("received_height ASC, id ASC").Find(&responses).Error
	return responses, wrap(err)
}

func (self *Postgres) HasResponse(challengeId, guardnodePubkey string) (found bool, err error) {
	var count int64
	err = self.db.
		Model(&model.Response{}).
		Where("challenge_id = ? AND guardnode_pubkey = ?", challengeId, guardnodePubkey).
		Count(&count).
		Error
	return count > 0, wrap(err)
}

func (self *Postgres) CountChallengeResponses(challengeId string) (count int64, err error) {
	err = self.db.
		Model(&model.Response{}).
		Where("challenge_id = ? AND verified", challengeId).
		Count(&count).
		Error
	return count, wrap(err)
}

type challengeResponsesRow struct {
	ChallengeId    string
	Hash           string
	HeightCreated  int64
	DeadlineHeight int64
	State          model.ChallengeState
	BidTxids       pq.StringArray `gorm:"type:text[]"`
}

func (self *Postgres) GetChallengeResponses(requestTxid string) (out []*ChallengeResponses, err error) {
	var rows []challengeResponsesRow
	err = self.db.
		Raw(`SELECT c.id AS challenge_id,
			c.hash,
			c.height_created,
			c.deadline_height,
			c.state,
			COALESCE(array_agg(DISTINCT b.bid_txid) FILTER (WHERE b.bid_txid IS NOT NULL), '{}') AS bid_txids
		FROM challenges c
		LEFT JOIN responses r ON r.challenge_id = c.id AND r.verified
		LEFT JOIN LATERAL unnest(r.bid_txids) AS b(bid_txid) ON TRUE
		WHERE c.request_txid = ?
		GROUP BY c.id
		ORDER BY c.height_created ASC`, requestTxid).
		Scan(&rows).
		Error
	if err != nil {
		return nil, wrap(err)
	}

	out = make([]*ChallengeResponses, 0, len(rows))
	for _, row := range rows {
		out = append(out, &ChallengeResponses{
			ChallengeId:    row.ChallengeId,
			Hash:           row.Hash,
			HeightCreated:  row.HeightCreated,
			DeadlineHeight: row.DeadlineHeight,
			State:          row.State,
			BidTxids:       row.BidTxids,
		})
	}
	return
}

func (self *Postgres) GetResponseSummary(requestTxid string) (summary *ResponseSummary, err error) {
	challenges, err := self.GetChallengeResponses(requestTxid)
	if err != nil {
		return
	}

	summary = &ResponseSummary{BidResponses: make(map[string]uint32)}
	for _, challenge := range challenges {
		summary.NumChallenges++
		for _, txid := range challenge.BidTxids {
			summary.BidResponses[txid]++
		}
	}
	return
}
