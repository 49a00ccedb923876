package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstAndCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 2, testLogger())
	defer rl.Close()

	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.False(t, rl.Allow("ip:1.2.3.4"))
	assert.True(t, rl.Allow("ip:5.6.7.8"))
	assert.Equal(t, 2, rl.GetStats()["active_limiters"])

	rl.cleanup(time.Now().Add(time.Hour), time.Minute)
	assert.Equal(t, 0, rl.GetStats()["active_limiters"])

	rl.Close()
	rl.Close()
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/match", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	assert.Equal(t, "ip:192.0.2.7", getRateLimitKey(req, true, true))
	assert.Equal(t, "", getRateLimitKey(req, true, false))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "api_key:abc", getRateLimitKey(req, true, true))
	assert.Equal(t, "api_key", keyKind(getRateLimitKey(req, true, true)))

	req.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.3")
	assert.Equal(t, "ip:198.51.100.3", getRateLimitKey(req, false, true))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}
