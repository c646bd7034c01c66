// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestIDHeader carries the request id in requests and responses.
const RequestIDHeader = "X-Request-ID"

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// RequestLogger stores a logger annotated with the request id, method and
// path in the gin context. A request id sent by the client is reused,
// otherwise a new one is generated; either way it is echoed in the response.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(ReqLoggerKey, base.With(
			"requestId", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
		))
		c.Next()
	}
}

// ItemFields returns key/value pairs identifying an item, suitable for
// SugaredLogger.With or Infow calls. A zero item id only yields the endpoint.
func ItemFields(endpointID, itemID int64) []interface{} {
	if itemID == 0 {
		return []interface{}{"endpoint", endpointID}
	}
	return []interface{}{"endpoint", endpointID, "item", itemID}
}
