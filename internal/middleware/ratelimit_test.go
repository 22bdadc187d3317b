package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rps float64, burst int) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(rps, burst, ClientIP))
	router.POST("/upload", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func send(router *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest("POST", "/upload", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsNormalTraffic(t *testing.T) {
	router := limitedRouter(10, 5)

	for i := 0; i < 5; i++ {
		if code := send(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, code)
		}
	}
}

func TestRateLimit_RejectsExcessiveTraffic(t *testing.T) {
	router := limitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		send(router, "10.0.0.1:1234")
	}

	if code := send(router, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	router := limitedRouter(1, 1)

	if code := send(router, "10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("client a first request: expected 200, got %d", code)
	}
	if code := send(router, "10.0.0.1:5555"); code != http.StatusTooManyRequests {
		t.Errorf("client a second request (new port): expected 429, got %d", code)
	}
	if code := send(router, "10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("client b first request: expected 200, got %d", code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	router := limitedRouter(0, 0)

	for i := 0; i < 20; i++ {
		if code := send(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with limiting disabled, got %d", i, code)
		}
	}
}

func TestBucketSet_EvictsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	s := newBucketSet(2, 5, clock)

	s.get("10.0.0.1")
	s.get("10.0.0.2")
	if n := s.len(); n != 2 {
		t.Fatalf("expected 2 buckets, got %d", n)
	}

	// 10.0.0.2 stays active; 10.0.0.1 goes quiet.
	now = now.Add(minIdle / 2)
	s.get("10.0.0.2")

	now = now.Add(minIdle/2 + time.Second)
	s.get("10.0.0.3")

	if n := s.len(); n != 2 {
		t.Fatalf("expected idle bucket to be evicted, have %d buckets", n)
	}
	if _, ok := s.buckets["10.0.0.1"]; ok {
		t.Error("expected 10.0.0.1 to be evicted")
	}
	if _, ok := s.buckets["10.0.0.2"]; !ok {
		t.Error("expected recently seen 10.0.0.2 to be kept")
	}
}

func TestBucketSet_IdleCoversRefill(t *testing.T) {
	// 100 tokens at 0.5/s take 200s to refill, longer than the minimum.
	s := newBucketSet(0.5, 100, time.Now)
	if s.idle != 200*time.Second {
		t.Errorf("expected idle 200s, got %v", s.idle)
	}

	s = newBucketSet(10, 5, time.Now)
	if s.idle != minIdle {
		t.Errorf("expected idle %v, got %v", minIdle, s.idle)
	}
}
