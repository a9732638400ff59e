package coordinator

import (
	"context"
	"errors"
	"net/http"

	"github.com/gammazero/workerpool"
	"github.com/gin-gonic/gin"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// Listener is the public HTTP endpoint guardnodes POST challenge proofs to.
// Verification is pushed onto a bounded worker pool so a burst of
// submissions cannot exhaust the process.
type Listener struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine

	verifier   *Verifier
	workerPool *workerpool.WorkerPool
}

func NewListener(config *config.Config) (self *Listener) {
	self = new(Listener)

	self.Task = task.NewTask(config, "listener").
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop).
		WithWorkerPool(config.Coordinator.ListenerNumWorkers)

	gin.SetMode(gin.ReleaseMode)
	self.Router = gin.New()
	self.Router.Use(gin.Recovery())

	self.httpServer = &http.Server{
		Addr:    self.Config.Coordinator.ListenAddress,
		Handler: self.Router,
	}

	return
}

func (self *Listener) WithVerifier(verifier *Verifier) *Listener {
	self.verifier = verifier
	return self
}

func (self *Listener) run() (err error) {
	self.Router.GET("/", self.onRoot)
	self.Router.POST("challengeproof", self.onChallengeProof)

	self.Log.WithField("addr", self.httpServer.Addr).Info("Listening for challenge proofs")

	err = self.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		self.Log.WithError(err).Error("Failed to start listener server")
		return
	}
	return nil
}

func (self *Listener) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown listener server")
		return
	}
}

func (self *Listener) onRoot(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Challenge proof listener. Proofs accepted at /challengeproof.\n")
}

func (self *Listener) onChallengeProof(ctx *gin.Context) {
	var proof ChallengeProof
	err := ctx.ShouldBindJSON(&proof)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad-format"})
		return
	}

	err = proof.Validate()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad-format", "detail": err.Error()})
		return
	}

	done := make(chan error, 1)
	self.Workers.Submit(func() {
		done <- self.verifier.Submit(&proof)
	})

	select {
	case <-self.StopChannel:
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting-down"})
		return
	case err = <-done:
	}

	if err == nil {
		ctx.JSON(http.StatusOK, gin.H{})
		return
	}

	status, code := errorStatus(err)
	ctx.JSON(status, gin.H{"error": code})
}

// Rejection codes are part of the guardnode wire contract and stay stable
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound, "bad-request-id"
	case errors.Is(err, ErrChallengeExpired):
		return http.StatusBadRequest, "no-active-challenge"
	case errors.Is(err, ErrUnauthorizedBid):
		return http.StatusBadRequest, "bad-bid"
	case errors.Is(err, ErrBadSignature):
		return http.StatusBadRequest, "bad-sig"
	case errors.Is(err, ErrDuplicateResponse):
		return http.StatusConflict, "duplicate-response"
	case errors.Is(err, storage.ErrStorage):
		return http.StatusInternalServerError, "internal-error"
	}
	return http.StatusInternalServerError, "internal-error"
}
