package httpkit

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"franchise_ops_backend/platform/apperr"
	"franchise_ops_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T, method string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, "/api/v1/leads/abc", nil)
	return c, rec
}

func capturedLogger(buf *bytes.Buffer) *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(buf, nil))}
}

func TestHandleErrorLogsUnhandledFailures(t *testing.T) {
	c, rec := testContext(t, http.MethodPatch)
	var buf bytes.Buffer

	if !HandleError(c, capturedLogger(&buf), errors.New("connection pool exhausted")) {
		t.Fatal("HandleError returned false for a non-nil error")
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection pool exhausted") {
		t.Errorf("storage error leaked into the response: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "connection pool exhausted") {
		t.Errorf("log output %q does not record the underlying error", buf.String())
	}
}

func TestHandleErrorDomainErrorsStayQuiet(t *testing.T) {
	c, rec := testContext(t, http.MethodGet)
	var buf bytes.Buffer

	if !HandleError(c, capturedLogger(&buf), apperr.NotFound("lead not found")) {
		t.Fatal("HandleError returned false for a non-nil error")
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lead not found") {
		t.Errorf("body = %s, want the domain message", rec.Body.String())
	}
	if buf.Len() != 0 {
		t.Errorf("domain error was logged as a failure: %q", buf.String())
	}
}

func TestHandleErrorNil(t *testing.T) {
	c, rec := testContext(t, http.MethodGet)

	if HandleError(c, capturedLogger(&bytes.Buffer{}), nil) {
		t.Fatal("HandleError returned true for nil")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want untouched 200", rec.Code)
	}
}
