package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"
)

type stubChecker struct {
	enabled bool
	err     error
}

func (s stubChecker) Enabled(context.Context) (bool, error) {
	return s.enabled, s.err
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		checker EnabledChecker
		want    int
	}{
		{name: "ready", checker: stubChecker{enabled: true}, want: http.StatusOK},
		{name: "disabled", checker: stubChecker{enabled: false}, want: http.StatusServiceUnavailable},
		{name: "catalog error", checker: stubChecker{err: errors.New("mcp down")}, want: http.StatusServiceUnavailable},
		{name: "no checker", checker: nil, want: http.StatusServiceUnavailable},
	}

	Convey("健康与就绪检查", t, func() {
		for _, tt := range tests {
			h := NewHealthHandler(tt.checker)
			r := gin.New()
			r.GET("/health", h.Health)
			r.GET("/ready", h.Ready)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, tt.want)
		}
	})
}
