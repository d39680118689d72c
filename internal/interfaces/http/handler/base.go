package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/interfaces/http/dto"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// BaseHandler carries the response vocabulary shared by every handler:
// enveloped successes, coded errors, and the session guard.
type BaseHandler struct{}

// currentSession returns the session attached by the auth middleware, or
// nil for anonymous requests.
func currentSession(c *gin.Context) *storefront.Session {
	return middleware.GetSession(c)
}

// requireSession returns the session or rejects the request. The auth
// middleware guards every route that calls this; the nil check only matters
// when a route is wired without it.
func (h *BaseHandler) requireSession(c *gin.Context) (*storefront.Session, bool) {
	session := currentSession(c)
	if session == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return nil, false
	}
	return session, true
}

// Success sends data in a 200 envelope.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithPage sends data in a 200 envelope with cursor pagination meta.
func (h *BaseHandler) SuccessWithPage(c *gin.Context, data any, count int, hasNextPage bool, endCursor string) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithPage(data, count, hasNextPage, endCursor))
}

// Created sends data in a 201 envelope.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error envelope under an explicit HTTP status.
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.RequestIDFrom(c)))
}

// ErrorWithCode sends an error envelope, deriving the HTTP status from the
// gateway error code.
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// HandleError maps any error to an envelope. Domain errors keep their code
// and mapped status; everything else collapses to an opaque 500 so internal
// details never leak to the storefront.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, domainErr.Code, domainErr.Message)
		return
	}
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
