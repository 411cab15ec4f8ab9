package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"mindmirror/backend/internal/pipeline"
)

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestEntriesEndpoint_InvalidRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Mock endpoint
	router.POST("/api/entries", func(c *gin.Context) {
		var req struct {
			Text   string `json:"text" binding:"required"`
			Source string `json:"source"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry_id": "test"})
	})

	// Test missing text field
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/entries", bytes.NewBuffer([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntryResponse_FailedStepNames(t *testing.T) {
	result := &pipeline.Result{
		EntryID: "abc",
		Success: true,
		StepErrors: []pipeline.StepError{
			{Step: "embedding", Err: errors.New("down")},
		},
	}

	body := entryResponse(result)
	assert.Equal(t, "abc", body["entry_id"])
	assert.Equal(t, []string{"embedding"}, body["failed_steps"])
	assert.Equal(t, false, body["duplicate"])
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/api/people?limit=7", nil)
	assert.Equal(t, 7, queryLimit(c, 50))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/api/people?limit=bogus", nil)
	assert.Equal(t, 50, queryLimit(c, 50))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/api/people", nil)
	assert.Equal(t, 50, queryLimit(c, 50))
}
