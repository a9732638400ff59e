package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// JSON-RPC server exposing stored requests, bids and challenge responses.
// Read only, it never touches coordination state.
type Server struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine

	store storage.Storage
}

func NewServer(config *config.Config) (self *Server) {
	self = new(Server)

	self.Task = task.NewTask(config, "api-server").
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop)

	gin.SetMode(gin.ReleaseMode)
	self.Router = gin.New()
	self.Router.Use(gin.Recovery())

	if self.Config.Api.User != "" {
		self.Router.Use(gin.BasicAuth(gin.Accounts{
			self.Config.Api.User: self.Config.Api.Pass,
		}))
	}

	self.httpServer = &http.Server{
		Addr:         self.Config.Api.ListenAddress,
		Handler:      self.Router,
		ReadTimeout:  self.Config.Api.RequestTimeout,
		WriteTimeout: self.Config.Api.RequestTimeout,
	}

	return
}

func (self *Server) WithStorage(store storage.Storage) *Server {
	self.store = store
	return self
}

func (self *Server) run() (err error) {
	self.Router.POST("/", self.onRpc)

	self.Log.WithField("addr", self.httpServer.Addr).Info("Serving query API")

	err = self.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		self.Log.WithError(err).Error("Failed to start API server")
		return
	}
	return nil
}

func (self *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown API server")
		return
	}
}

func (self *Server) onRpc(ctx *gin.Context) {
	var req rpcRequest
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		ctx.JSON(http.StatusOK, errorResponse(nil, codeParse, "parse error"))
		return
	}

	result, rpcErr := self.dispatch(&req)
	if rpcErr != nil {
		ctx.JSON(http.StatusOK, rpcResponse{Jsonrpc: "2.0", Id: req.Id, Error: rpcErr})
		return
	}
	ctx.JSON(http.StatusOK, rpcResponse{Jsonrpc: "2.0", Id: req.Id, Result: result})
}
