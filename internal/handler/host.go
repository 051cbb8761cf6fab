package handler

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/transport"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HostHandler serves this process's filesystem to remote workspaces
type HostHandler struct {
	dispatcher *transport.Dispatcher
	logger     *zap.Logger
}

// NewHostHandler creates a host handler serving backend
func NewHostHandler(backend fs.Backend, logger *zap.Logger) *HostHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostHandler{
		dispatcher: transport.NewDispatcher(backend, logger),
		logger:     logger,
	}
}

// Invoke runs one operation per POST /api/host/:op
func (h *HostHandler) Invoke(c *gin.Context) {
	op := c.Param("op")
	if !slices.Contains(fs.Ops, op) {
		c.JSON(http.StatusNotFound, transport.ErrorResponse(transport.ErrUnknownOp))
		return
	}
	args, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, transport.ErrorResponse(err))
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), op, args)
	status := http.StatusOK
	if err := resp.Err(); err != nil {
		status = statusFor(err)
	}
	c.JSON(status, resp)
}

// HandleWS serves operations over a WebSocket. Calls on one connection run
// concurrently and each reply carries the id of its request.
func (h *HostHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	reply := func(resp *transport.Response) {
		data, err := sonic.Marshal(resp)
		if err != nil {
			h.logger.Warn("encode host reply", zap.Error(err))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var req transport.Request
		if err := sonic.Unmarshal(data, &req); err != nil {
			h.logger.Debug("malformed host frame", zap.Error(err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := h.dispatcher.Dispatch(ctx, req.Op, req.Args)
			resp.ID = req.ID
			reply(resp)
		}()
	}

	cancel()
	wg.Wait()
}
