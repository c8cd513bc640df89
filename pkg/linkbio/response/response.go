// Package response renders the {success, data, error} envelope shared by
// every JSON endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Envelope is the uniform response body
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failure
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Kinds used by the HTTP layer on top of store.Kind
const (
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
)

// OK writes a successful envelope
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// Error writes a failed envelope with an explicit status and kind
func Error(c *gin.Context, status int, kind, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Kind: kind, Message: message}})
}

// AbortError is Error for middleware
func AbortError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &ErrorBody{Kind: kind, Message: message}})
}

// Invalid reports a request that failed binding
func Invalid(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, string(store.KindInvalid), err.Error())
}

// Fail maps a store error onto its status. Internal causes are not echoed.
func Fail(c *gin.Context, err error) {
	kind := store.KindOf(err)
	msg := err.Error()
	if kind == store.KindInternal {
		_ = c.Error(err)
		msg = "internal error"
	}
	Error(c, Status(kind), string(kind), msg)
}

// Status returns the HTTP status for a store error kind
func Status(kind store.Kind) int {
	switch kind {
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindInvalid:
		return http.StatusBadRequest
	case store.KindConflict:
		return http.StatusConflict
	case store.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
