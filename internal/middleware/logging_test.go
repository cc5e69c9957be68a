package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRedactMasksPasswords(t *testing.T) {
	in := `{"action":"get_count","connection":{"host":"db","password":"s3cr\"et","user":"root"}}`
	out := redact([]byte(in))
	assert.NotContains(t, out, "s3cr")
	assert.Contains(t, out, `"password":"***"`)
	assert.Contains(t, out, `"user":"root"`)
}

func TestRedactTruncates(t *testing.T) {
	out := redact([]byte(strings.Repeat("a", maxLoggedBody+10)))
	assert.True(t, strings.HasSuffix(out, "...(truncated)"))
}

func TestRequestLoggerKeepsBodyReadable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello"))
	r.ServeHTTP(w, req)
	assert.Equal(t, "hello", w.Body.String())
}
