package apperror

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	Validation         Kind = "VALIDATION_ERROR"
	DuplicateUser      Kind = "DUPLICATE_USER"
	InvalidCredentials Kind = "INVALID_CREDENTIALS"
	Unauthenticated    Kind = "UNAUTHENTICATED"
	InvalidToken       Kind = "INVALID_TOKEN"
	NotAuthor          Kind = "NOT_AUTHOR"
	NotFound           Kind = "NOT_FOUND"
	RateLimited        Kind = "RATE_LIMITED"
	Internal           Kind = "INTERNAL"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case Validation, DuplicateUser, InvalidCredentials, NotAuthor:
		return http.StatusBadRequest
	case Unauthenticated, InvalidToken:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Response is the single error envelope returned by every route.
type Response struct {
	Error string `json:"error"`
	Code  Kind   `json:"code"`
}

// Abort writes the envelope and stops the handler chain.
func Abort(c *gin.Context, kind Kind, message string) {
	c.AbortWithStatusJSON(kind.Status(), Response{Error: message, Code: kind})
}

// AbortInternal logs err and answers with a generic 500.
func AbortInternal(c *gin.Context, err error, message string) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(message)
	Abort(c, Internal, "Internal server error")
}
