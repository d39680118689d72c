package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/interfaces/http/dto"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// decodeResponse parses the response envelope
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// dataMap returns the envelope's data as an object
func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %T", resp.Data)
	return data
}

// dataSlice returns the envelope's data as an array
func dataSlice(t *testing.T, resp dto.Response) []any {
	t.Helper()
	data, ok := resp.Data.([]any)
	require.True(t, ok, "data is not an array: %T", resp.Data)
	return data
}

// testSession returns a session the way the auth middleware would attach it
func testSession() *storefront.Session {
	session := storefront.NewSession("gid://shopify/Customer/1", "buyer@example.com")
	session.AccessToken = "shcat_access"
	session.RefreshToken = "shcrt_refresh"
	session.IDToken = "idtoken"
	return session
}

// withSession simulates the session auth middleware for handler tests
func withSession(session *storefront.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session != nil {
			c.Set(middleware.SessionKey, session)
		}
		c.Next()
	}
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Success(c, gin.H{"value": 42})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, float64(42), dataMap(t, resp)["value"])
}

func TestBaseHandlerSuccessWithPage(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.SuccessWithPage(c, []string{"a", "b"}, 2, true, "cursor-xyz")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Count)
	assert.True(t, resp.Meta.HasNextPage)
	assert.Equal(t, "cursor-xyz", resp.Meta.EndCursor)
}

func TestBaseHandlerErrorWithCode(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantStatus int
	}{
		{"not found maps to 404", dto.ErrCodeNotFound, http.StatusNotFound},
		{"validation maps to 422", dto.ErrCodeValidation, http.StatusUnprocessableEntity},
		{"already submitted maps to 409", dto.ErrCodeAlreadySubmitted, http.StatusConflict},
		{"upstream failed maps to 502", dto.ErrCodeUpstreamFailed, http.StatusBadGateway},
		{"unknown code maps to 500", "SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Set("request_id", "req-base-1")

			h.ErrorWithCode(c, tt.code, "boom")

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-base-1", resp.Error.RequestID)
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Run("domain error uses its code and message", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)

		h.HandleError(c, shared.NewDomainError(dto.ErrCodeSessionExpired, "Session has expired"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeSessionExpired, resp.Error.Code)
		assert.Equal(t, "Session has expired", resp.Error.Message)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)

		h.HandleError(c, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)

		h.HandleError(c, nil)

		assert.Empty(t, w.Body.String())
	})
}

func TestRequireSession(t *testing.T) {
	t.Run("rejects anonymous request", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)

		session, ok := h.requireSession(c)

		assert.False(t, ok)
		assert.Nil(t, session)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("returns the attached session", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)
		want := testSession()
		c.Set(middleware.SessionKey, want)

		session, ok := h.requireSession(c)

		assert.True(t, ok)
		assert.Same(t, want, session)
	})
}
