package coordinator

import (
	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// NewBidStore builds the flusher that batches observed bids into storage.
// Bids are a diagnostic record, losing one batch on a crash only means it
// gets re-observed on the next chain scan.
func NewBidStore(config *config.Config, store storage.Storage, monitor *monitoring.Monitor) *task.Flusher[*model.Bid] {
	flusher := task.NewFlusher[*model.Bid](config, "bid-store")
	return flusher.
		WithBatchSize(config.Coordinator.StoreBatchSize).
		WithBackoff(0, config.Coordinator.ChainBackoffMaxInterval).
		WithOnFlush(config.Coordinator.StoreFlushInterval, func(bids []*model.Bid) error {
			err := store.SaveBids(bids)
			if err != nil {
				monitor.GetReport().Errors.DbErrors.Inc()
				return err
			}
			flusher.Log.WithField("bids", len(bids)).Debug("Saved bid batch")
			return nil
		})
}
