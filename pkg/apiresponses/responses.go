/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/mail"
)

// APIError represents a standardized error response. Result carries the
// numeric dispatcher result code, Code its symbolic name.
type APIError struct {
	Error  string    `json:"error"`
	Code   string    `json:"code,omitempty"`
	Result mail.Code `json:"result"`
}

func respondError(c *gin.Context, status int, message string, code mail.Code) {
	c.JSON(status, APIError{
		Error:  message,
		Code:   code.String(),
		Result: code,
	})
}

// RespondNotFound sends a 404 Not Found response with a standardized message.
func RespondNotFound(c *gin.Context, resourceType, resourceName string, code mail.Code) {
	respondError(c, http.StatusNotFound, fmt.Sprintf("%s not found: %s", resourceType, resourceName), code)
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for client errors like malformed JSON or invalid parameters.
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message, mail.CodeInvalidRequest)
}

// RespondUnprocessableEntity sends a 422 response for a request that parsed
// but failed validation.
func RespondUnprocessableEntity(c *gin.Context, message string, code mail.Code) {
	respondError(c, http.StatusUnprocessableEntity, message, code)
}

// RespondTooManyRequests sends a 429 response.
func RespondTooManyRequests(c *gin.Context) {
	respondError(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later", mail.CodeGeneralError)
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	respondError(c, http.StatusInternalServerError, fmt.Sprintf("failed to %s", operation), mail.CodeGeneralError)
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with the given data.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// RespondNoContent sends a 204 No Content response.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
