package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(rl *CompanyRateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/send", RateLimitMiddleware(rl, "/send"), func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	return postTo(r, "/send", body)
}

func postTo(r http.Handler, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_PerCompany(t *testing.T) {
	r := newRouter(NewCompanyRateLimiter(1, 1))

	first := post(r, `{"companyId":"123"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := post(r, `{"companyId":"123"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")

	// numeric ids share the bucket of their string form
	third := post(r, `{"companyId":123}`)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)

	other := post(r, `{"companyId":"456"}`)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitMiddleware_BodyStillReadable(t *testing.T) {
	r := newRouter(NewCompanyRateLimiter(60, 5))

	w := post(r, `{"companyId":"123","recipientName":"Pat"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"companyId":"123","recipientName":"Pat"}`, string(body))
}

func TestRateLimitMiddleware_MissingCompanyPassesThrough(t *testing.T) {
	r := newRouter(NewCompanyRateLimiter(1, 1))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(r, `{"recipientName":"Pat"}`).Code)
	}
}

func TestNewCompanyRateLimiter_Disabled(t *testing.T) {
	rl := NewCompanyRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("123"))
	}
	assert.Zero(t, rl.Tracked())
}

func TestRateLimitMiddleware_QueryCannotDodgeBodyBucket(t *testing.T) {
	r := newRouter(NewCompanyRateLimiter(1, 1))

	assert.Equal(t, http.StatusOK, postTo(r, "/send", `{"companyId":"123"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postTo(r, "/send?companyId=999", `{"companyId":"123"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postTo(r, "/send?companyId=1000", `{"companyId":"123"}`).Code)
}

func TestCompanyRateLimiter_PrunesRefilledBuckets(t *testing.T) {
	rl := NewCompanyRateLimiter(1, 1)
	rl.maxTracked = 2

	require.True(t, rl.Allow("busy"))
	rl.GetLimiter("idle")
	require.Equal(t, 2, rl.Tracked())

	rl.GetLimiter("new")
	assert.Equal(t, 2, rl.Tracked())

	// the spent bucket survives pruning
	assert.False(t, rl.Allow("busy"))
}

func TestCompanyKey(t *testing.T) {
	assert.Equal(t, "123", CompanyKey(" 123 "))
	assert.Equal(t, "9876543210", CompanyKey(float64(9876543210)))
	assert.Equal(t, "", CompanyKey(nil))
	assert.Equal(t, "", CompanyKey(true))
}
