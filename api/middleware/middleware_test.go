package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SetTraceID(), ErrorMiddleware())
	return r
}

func TestErrorMiddleware(t *testing.T) {
	r := newTestRouter()
	r.GET("/missing", func(c *gin.Context) { HandleError(c, NewNotFoundError("report not found")) })
	r.GET("/bad", func(c *gin.Context) { HandleError(c, NewValidationError("invalid pattern", "offset 3")) })
	r.GET("/ptr", func(c *gin.Context) { HandleError(c, &AppError{Type: ErrorTypeBusiness, Message: "no issues", Code: 422}) })
	r.GET("/plain", func(c *gin.Context) { HandleError(c, errors.New("disk full")) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/missing", http.StatusNotFound, "report not found"},
		{"/bad", http.StatusBadRequest, "invalid pattern: offset 3"},
		{"/ptr", http.StatusUnprocessableEntity, "no issues"},
		{"/plain", http.StatusInternalServerError, "Internal server error"},
		{"/panic", http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("X-Trace-ID", "trace-1")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var body struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				TraceID string `json:"trace_id"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, "trace-1", body.TraceID)
		})
	}
}

func TestSetTraceID_Generated(t *testing.T) {
	r := newTestRouter()
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetTraceID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Trace-ID"))
}

func TestConfigureLogger_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "splitter.log")
	logger, err := ConfigureLogger(LogOptions{Level: "debug", File: file, MaxSizeMB: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	})

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField(FieldReportID, "r1").Info("written to file")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"report_id":"r1"`)
}
