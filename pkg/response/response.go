package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified API response format.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Error kinds. Clients switch on these rather than on Message.
const (
	KindUnauthenticated = "unauthenticated"
	KindRoleMismatch    = "role_mismatch"
	KindAccessForbidden = "access_forbidden"
	KindNotFound        = "not_found"
	KindValidation      = "validation_failed"
	KindTooManyRequests = "too_many_requests"
	KindInternal        = "internal"
)

// AppError represents a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 400, 404, 500)
	Code       int    // Application-level error code
	Kind       string // One of the Kind* constants
	Message    string // Human-readable error message
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches another *AppError with the same Kind, so errors.Is works against
// the Err* sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrUnauthenticated = &AppError{Kind: KindUnauthenticated}
	ErrRoleMismatch    = &AppError{Kind: KindRoleMismatch}
	ErrAccessForbidden = &AppError{Kind: KindAccessForbidden}
	ErrNotFound        = &AppError{Kind: KindNotFound}
	ErrValidation      = &AppError{Kind: KindValidation}
)

// Pre-defined error constructors

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: 400, Kind: KindValidation, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: 401, Kind: KindUnauthenticated, Message: msg}
}

// NewForbidden is an access failure on a specific resource.
func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: 403, Kind: KindAccessForbidden, Message: msg}
}

// NewRoleMismatch is a role guard failure. It shares 403 with NewForbidden
// but carries its own kind.
func NewRoleMismatch(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: 403, Kind: KindRoleMismatch, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: 404, Kind: KindNotFound, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Code: 500, Kind: KindInternal, Message: msg}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 is returned without exposing err.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		c.JSON(appErr.HTTPStatus, Response{
			Code:    appErr.Code,
			Message: appErr.Message,
			Error:   appErr.Kind,
		})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, Response{
		Code:    500,
		Message: "internal server error",
		Error:   KindInternal,
	})
}

// Abort is Error followed by c.Abort, for use in middleware.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: 400, Message: msg, Error: KindValidation})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Code: 401, Message: msg, Error: KindUnauthenticated})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Code: 403, Message: msg, Error: KindAccessForbidden})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: 404, Message: msg, Error: KindNotFound})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Response{Code: 429, Message: msg, Error: KindTooManyRequests})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: 500, Message: msg, Error: KindInternal})
}
