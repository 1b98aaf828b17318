package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBotScope_HeaderAndDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BotScope("default-bot"))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, BotFrom(c))
	})

	// Header wins.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Bot-ID", "  tienda-7  ")
	r.ServeHTTP(w, req)
	if w.Body.String() != "tienda-7" {
		t.Fatalf("bot = %q; want trimmed header value", w.Body.String())
	}

	// Fallback to the configured default.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w2, req2)
	if w2.Body.String() != "default-bot" {
		t.Fatalf("bot = %q; want default", w2.Body.String())
	}
}

func TestBotFrom_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := BotFrom(c); got != "" {
		t.Fatalf("BotFrom = %q; want empty when BotScope did not run", got)
	}
}

func TestBotScope_LoggedByAccessLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(BotScope("default-bot"))
	r.Use(Logger())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Bot-ID", "tienda-9")
	r.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), `"bot_id":"tienda-9"`) {
		t.Fatalf("access log missing bot_id:\n%s", buf.String())
	}
}
