package testutil

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// newEnvelopeEngine returns an engine speaking the gateway envelope
func newEnvelopeEngine() *gin.Engine {
	engine := gin.New()
	engine.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"name": "demo", "count": 3},
		})
	})
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "BAD_REQUEST", "message": "unparseable body"},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": body})
	})
	engine.GET("/secret", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer letmein" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"granted": true}})
	})
	return engine
}

func TestPerformRequest_MarshalsBody(t *testing.T) {
	engine := newEnvelopeEngine()

	rec := PerformRequest(t, engine, http.MethodPost, "/echo", map[string]any{"key": "value"})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := DecodeData[map[string]any](t, rec)
	assert.Equal(t, "value", data["key"])
}

func TestPerformRequest_NoBody(t *testing.T) {
	engine := newEnvelopeEngine()

	rec := PerformRequest(t, engine, http.MethodGet, "/ok", nil)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	data := DecodeData[payload](t, rec)
	assert.Equal(t, "demo", data.Name)
	assert.Equal(t, 3, data.Count)
}

func TestWithBearer(t *testing.T) {
	engine := newEnvelopeEngine()

	rec := PerformRequest(t, engine, http.MethodGet, "/secret", nil)
	AssertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = PerformRequest(t, engine, http.MethodGet, "/secret", nil, WithBearer("letmein"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithHeader(t *testing.T) {
	engine := gin.New()
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"rid": c.GetHeader("X-Request-ID")}})
	})

	rec := PerformRequest(t, engine, http.MethodGet, "/", nil, WithHeader("X-Request-ID", "req-1"))

	data := DecodeData[map[string]string](t, rec)
	assert.Equal(t, "req-1", data["rid"])
}

func TestAssertErrorCode(t *testing.T) {
	engine := newEnvelopeEngine()

	rec := PerformRequest(t, engine, http.MethodPost, "/echo", nil)
	AssertErrorCode(t, rec, http.StatusBadRequest, "BAD_REQUEST")
}
