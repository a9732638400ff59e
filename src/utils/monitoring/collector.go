package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	ServiceChainHeight     *prometheus.Desc
	ClientChainHeight      *prometheus.Desc
	RequestsTracked        *prometheus.Desc
	BidsTracked            *prometheus.Desc
	ChallengesCreated      *prometheus.Desc
	ChallengesClosed       *prometheus.Desc
	ChallengesTimedOut     *prometheus.Desc
	ResponsesAccepted      *prometheus.Desc
	RequestsExpired        *prometheus.Desc
	ChainErrors            *prometheus.Desc
	DbErrors               *prometheus.Desc
	ResponsesRejected      *prometheus.Desc
	DuplicateGenesisHashes *prometheus.Desc
	UnattachableBids       *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "coordinator",
	}

	return &Collector{
		ServiceChainHeight:     prometheus.NewDesc("service_chain_height", "", nil, labels),
		ClientChainHeight:      prometheus.NewDesc("client_chain_height", "", nil, labels),
		RequestsTracked:        prometheus.NewDesc("requests_tracked", "", nil, labels),
		BidsTracked:            prometheus.NewDesc("bids_tracked", "", nil, labels),
		ChallengesCreated:      prometheus.NewDesc("challenges_created", "", nil, labels),
		ChallengesClosed:       prometheus.NewDesc("challenges_closed", "", nil, labels),
		ChallengesTimedOut:     prometheus.NewDesc("challenges_timed_out", "", nil, labels),
		ResponsesAccepted:      prometheus.NewDesc("responses_accepted", "", nil, labels),
		RequestsExpired:        prometheus.NewDesc("requests_expired", "", nil, labels),
		ChainErrors:            prometheus.NewDesc("chain_errors", "", nil, labels),
		DbErrors:               prometheus.NewDesc("db_errors", "", nil, labels),
		ResponsesRejected:      prometheus.NewDesc("responses_rejected", "", nil, labels),
		DuplicateGenesisHashes: prometheus.NewDesc("duplicate_genesis_hashes", "", nil, labels),
		UnattachableBids:       prometheus.NewDesc("unattachable_bids", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.ServiceChainHeight
	ch <- self.ClientChainHeight
	ch <- self.RequestsTracked
	ch <- self.BidsTracked
	ch <- self.ChallengesCreated
	ch <- self.ChallengesClosed
	ch <- self.ChallengesTimedOut
	ch <- self.ResponsesAccepted
	ch <- self.RequestsExpired
	ch <- self.ChainErrors
	ch <- self.DbErrors
	ch <- self.ResponsesRejected
	ch <- self.DuplicateGenesisHashes
	ch <- self.UnattachableBids
}

// Collect implements the required collect function for all prometheus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	state := &self.monitor.Report.State
	errors := &self.monitor.Report.Errors

	ch <- prometheus.MustNewConstMetric(self.ServiceChainHeight, prometheus.GaugeValue, float64(state.ServiceChainHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.ClientChainHeight, prometheus.GaugeValue, float64(state.ClientChainHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.RequestsTracked, prometheus.GaugeValue, float64(state.RequestsTracked.Load()))
	ch <- prometheus.MustNewConstMetric(self.BidsTracked, prometheus.GaugeValue, float64(state.BidsTracked.Load()))
	ch <- prometheus.MustNewConstMetric(self.ChallengesCreated, prometheus.CounterValue, float64(state.ChallengesCreated.Load()))
	ch <- prometheus.MustNewConstMetric(self.ChallengesClosed, prometheus.CounterValue, float64(state.ChallengesClosed.Load()))
	ch <- prometheus.MustNewConstMetric(self.ChallengesTimedOut, prometheus.CounterValue, float64(state.ChallengesTimedOut.Load()))
	ch <- prometheus.MustNewConstMetric(self.ResponsesAccepted, prometheus.CounterValue, float64(state.ResponsesAccepted.Load()))
	ch <- prometheus.MustNewConstMetric(self.RequestsExpired, prometheus.CounterValue, float64(state.RequestsExpired.Load()))
	ch <- prometheus.MustNewConstMetric(self.ChainErrors, prometheus.CounterValue, float64(errors.ChainErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.DbErrors, prometheus.CounterValue, float64(errors.DbErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.ResponsesRejected, prometheus.CounterValue, float64(errors.ResponsesRejected.Load()))
	ch <- prometheus.MustNewConstMetric(self.DuplicateGenesisHashes, prometheus.CounterValue, float64(errors.DuplicateGenesisHashes.Load()))
	ch <- prometheus.MustNewConstMetric(self.UnattachableBids, prometheus.CounterValue, float64(errors.UnattachableBids.Load()))
}
