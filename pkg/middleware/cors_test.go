package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupCORSRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(CheckoutCORSConfig(origins)))
	router.POST("/sessions", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", []string{"https://confiaticket.cl"}, http.MethodPost, "https://confiaticket.cl", http.StatusCreated, "https://confiaticket.cl"},
		{"preflight", []string{"https://confiaticket.cl"}, http.MethodOptions, "https://confiaticket.cl", http.StatusNoContent, "https://confiaticket.cl"},
		{"foreign origin", []string{"https://confiaticket.cl"}, http.MethodPost, "https://evil.example", http.StatusCreated, ""},
		{"wildcard echoes origin", []string{"*"}, http.MethodPost, "https://partner.example", http.StatusCreated, "https://partner.example"},
		{"no origin header", []string{"*"}, http.MethodPost, "", http.StatusCreated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupCORSRouter(tt.origins...)
			req := httptest.NewRequest(tt.method, "/sessions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllow != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
