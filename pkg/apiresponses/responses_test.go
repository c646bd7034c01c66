package apiresponses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/system"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(c *gin.Context)
		wantStatus int
		wantCode   string
		wantResult mail.Code
	}{
		{
			name:       "not found",
			fn:         func(c *gin.Context) { RespondNotFound(c, "endpoint", "42", mail.CodeEndpointNotFound) },
			wantStatus: http.StatusNotFound,
			wantCode:   "ENDPOINT_NOT_FOUND",
			wantResult: mail.CodeEndpointNotFound,
		},
		{
			name:       "bad request",
			fn:         func(c *gin.Context) { RespondBadRequest(c, "malformed body") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
			wantResult: mail.CodeInvalidRequest,
		},
		{
			name:       "validation",
			fn:         func(c *gin.Context) { RespondUnprocessableEntity(c, "subject too short", mail.CodeInvalidSubject) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_SUBJECT",
			wantResult: mail.CodeInvalidSubject,
		},
		{
			name:       "rate limited",
			fn:         RespondTooManyRequests,
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "GENERAL_ERROR",
			wantResult: mail.CodeGeneralError,
		},
		{
			name: "internal",
			fn: func(c *gin.Context) {
				RespondInternalError(c, "list endpoints", errors.New("boom"), system.NewTestLogger())
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "GENERAL_ERROR",
			wantResult: mail.CodeGeneralError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := record(tt.fn)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantResult, body.Result)
		})
	}
}

func TestRespondNotFoundMessage(t *testing.T) {
	w := record(func(c *gin.Context) { RespondNotFound(c, "result", "7", mail.CodeNotFound) })
	assert.Equal(t, "result not found: 7", decode(t, w).Error)
}

func TestSuccessResponses(t *testing.T) {
	w := record(func(c *gin.Context) { RespondOK(c, gin.H{"result": 0}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":0}`, w.Body.String())

	w = record(func(c *gin.Context) { RespondCreated(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusCreated, w.Code)

	// RespondNoContent only sets the status; the writer flushes it on first write.
	w = record(func(c *gin.Context) {
		RespondNoContent(c)
		c.Writer.WriteHeaderNow()
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
