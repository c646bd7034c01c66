// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/apiresponses"
	"github.com/telekom/mail-dispatcher/pkg/dispatcher"
	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/ledger"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/system"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

// Dispatcher is the facade the HTTP handlers drive.
type Dispatcher interface {
	RegisterEndpoint(cfg endpoint.Config) (int64, error)
	RemoveEndpoint(id int64) error
	Endpoints() []endpoint.Config
	Send(ctx context.Context, req dispatcher.SendRequest) (mail.Code, error)
	Result(endpointID, itemID int64, erase bool) (mail.Outcome, error)
	QueueCountWait(ctx context.Context, database string, cancelAll bool, wait time.Duration) (int, error)
	CancelQueued(database string)
	Workers() []worker.Info
}

// RegisterEndpointRequest is the body of POST /api/endpoints.
type RegisterEndpointRequest struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	SecurityMode int    `json:"securityMode"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Database     string `json:"database"`
	Banner       string `json:"banner,omitempty"`
}

// SendItemRequest is the body of POST /api/endpoints/:id/items.
type SendItemRequest struct {
	ItemID           int64  `json:"itemId"`
	SenderName       string `json:"senderName"`
	SenderAddress    string `json:"senderAddress"`
	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	// Priority is 0 (low), 1 (normal) or 2 (high).
	Priority  int  `json:"priority"`
	Immediate bool `json:"immediate"`
}

// ResultResponse is the body of a result lookup.
type ResultResponse struct {
	Status      mail.Code `json:"status"`
	ErrorCode   int       `json:"errorCode"`
	ErrorText   string    `json:"errorText"`
	CompletedAt time.Time `json:"completedAt"`
}

// CountResponse is the body of a queue count.
type CountResponse struct {
	Database string `json:"database"`
	Count    int    `json:"count"`
}

type DispatcherController struct {
	log        *zap.SugaredLogger
	dispatcher Dispatcher
	middleware []gin.HandlerFunc
}

func NewDispatcherController(log *zap.SugaredLogger, d Dispatcher, middleware ...gin.HandlerFunc) *DispatcherController {
	return &DispatcherController{
		log:        log.Named("dispatcher-api"),
		dispatcher: d,
		middleware: middleware,
	}
}

func (DispatcherController) BasePath() string {
	return ""
}

func (dc *DispatcherController) Handlers() []gin.HandlerFunc {
	return dc.middleware
}

func (dc *DispatcherController) Register(rg *gin.RouterGroup) error {
	rg.POST("/endpoints", dc.handleRegisterEndpoint)
	rg.GET("/endpoints", dc.handleListEndpoints)
	rg.DELETE("/endpoints/:id", dc.handleRemoveEndpoint)
	rg.POST("/endpoints/:id/items", dc.handleSend)
	rg.GET("/endpoints/:id/items/:itemId/result", dc.handleResult)
	rg.GET("/queue/:database/count", dc.handleQueueCount)
	rg.DELETE("/queue/:database", dc.handleCancelQueued)
	rg.GET("/workers", dc.handleWorkers)
	return nil
}

func (dc *DispatcherController) handleRegisterEndpoint(c *gin.Context) {
	var req RegisterEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dc.respondError(c, "register endpoint", invalidRequest("endpoint: %v", err))
		return
	}

	id, err := dc.dispatcher.RegisterEndpoint(endpoint.Config{
		Host:     req.Host,
		Port:     req.Port,
		Security: endpoint.ParseSecurityMode(req.SecurityMode),
		User:     req.User,
		Password: req.Password,
		Database: req.Database,
		Banner:   req.Banner,
	})
	if err != nil {
		dc.respondError(c, "register endpoint", err)
		return
	}
	apiresponses.RespondCreated(c, gin.H{"id": id})
}

func (dc *DispatcherController) handleListEndpoints(c *gin.Context) {
	apiresponses.RespondOK(c, dc.dispatcher.Endpoints())
}

func (dc *DispatcherController) handleRemoveEndpoint(c *gin.Context) {
	id, ok := dc.pathInt(c, "id")
	if !ok {
		return
	}
	if err := dc.dispatcher.RemoveEndpoint(id); err != nil {
		dc.respondError(c, "remove endpoint", err)
		return
	}
	apiresponses.RespondNoContent(c)
}

func (dc *DispatcherController) handleSend(c *gin.Context) {
	id, ok := dc.pathInt(c, "id")
	if !ok {
		return
	}
	var req SendItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dc.respondError(c, "send item", invalidRequest("item: %v", err))
		return
	}

	log := system.GetReqLogger(c, dc.log).With(system.ItemFields(id, req.ItemID)...)
	code, err := dc.dispatcher.Send(c.Request.Context(), dispatcher.SendRequest{
		EndpointID:       id,
		ItemID:           req.ItemID,
		SenderName:       req.SenderName,
		SenderAddress:    req.SenderAddress,
		RecipientName:    req.RecipientName,
		RecipientAddress: req.RecipientAddress,
		Subject:          req.Subject,
		Body:             req.Body,
		Priority:         mail.ParsePriority(req.Priority),
		Immediate:        req.Immediate,
	})
	if err != nil {
		log.Debugw("Item rejected", "code", code, "error", err)
		dc.respondError(c, "send item", err)
		return
	}
	log.Debugw("Item accepted", "immediate", req.Immediate, "code", code)
	apiresponses.RespondOK(c, gin.H{"result": code})
}

func (dc *DispatcherController) handleResult(c *gin.Context) {
	id, ok := dc.pathInt(c, "id")
	if !ok {
		return
	}
	itemID, ok := dc.pathInt(c, "itemId")
	if !ok {
		return
	}
	erase, ok := dc.queryBool(c, "erase")
	if !ok {
		return
	}

	outcome, err := dc.dispatcher.Result(id, itemID, erase)
	if err != nil {
		dc.respondError(c, "look up result", err)
		return
	}
	apiresponses.RespondOK(c, ResultResponse{
		Status:      outcome.Status,
		ErrorCode:   outcome.ErrorCode,
		ErrorText:   outcome.ErrorText,
		CompletedAt: outcome.CompletedAt,
	})
}

func (dc *DispatcherController) handleQueueCount(c *gin.Context) {
	database := c.Param("database")
	cancel, ok := dc.queryBool(c, "cancel")
	if !ok {
		return
	}
	var wait time.Duration
	if v := c.Query("waitMs"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			dc.respondError(c, "count queued items", invalidRequest("waitMs %q", v))
			return
		}
		wait = time.Duration(ms) * time.Millisecond
	}

	n, err := dc.dispatcher.QueueCountWait(c.Request.Context(), database, cancel, wait)
	if err != nil && !errors.Is(err, context.Canceled) {
		dc.respondError(c, "count queued items", err)
		return
	}
	apiresponses.RespondOK(c, CountResponse{Database: database, Count: n})
}

func (dc *DispatcherController) handleCancelQueued(c *gin.Context) {
	database := c.Param("database")
	dc.dispatcher.CancelQueued(database)
	system.GetReqLogger(c, dc.log).Infow("Queued items cancelled", "database", database)
	apiresponses.RespondNoContent(c)
}

func (dc *DispatcherController) handleWorkers(c *gin.Context) {
	apiresponses.RespondOK(c, dc.dispatcher.Workers())
}

// respondError maps a dispatcher error to its HTTP status: malformed requests
// answer 400, unknown endpoints and results 404, rejected input 422 and
// anything else 500.
func (dc *DispatcherController) respondError(c *gin.Context, operation string, err error) {
	code := dispatcher.CodeOf(err)
	switch {
	case errors.Is(err, dispatcher.ErrInvalidRequest):
		apiresponses.RespondBadRequest(c, err.Error())
	case errors.Is(err, dispatcher.ErrInvalidEndpoint), errors.Is(err, endpoint.ErrNotFound):
		apiresponses.RespondNotFound(c, "endpoint", c.Param("id"), code)
	case errors.Is(err, ledger.ErrNotFound):
		apiresponses.RespondNotFound(c, "result", c.Param("itemId"), code)
	case dispatcher.IsValidationError(err):
		apiresponses.RespondUnprocessableEntity(c, err.Error(), code)
	default:
		apiresponses.RespondInternalError(c, operation, err, system.GetReqLogger(c, dc.log))
	}
}

func (dc *DispatcherController) pathInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		dc.respondError(c, "parse "+name, invalidRequest("%s %q", name, raw))
		return 0, false
	}
	return v, true
}

func (dc *DispatcherController) queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		dc.respondError(c, "parse "+name, invalidRequest("%s %q", name, raw))
		return false, false
	}
	return v, true
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{dispatcher.ErrInvalidRequest}, args...)...)
}
