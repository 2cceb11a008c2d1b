package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/middleware"
)

type fixedSessions int

func (n fixedSessions) LiveSessions() int { return int(n) }

// unreachableRedis fails every command quickly.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestHealthReportsDependencies(t *testing.T) {
	h := NewSystemHandler(unreachableRedis(t), fixedSessions(0), map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, zerolog.Nop())

	r := gin.New()
	r.GET("/health", h.Health)

	code, env := serve(t, r, http.MethodGet, "/health", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Checks["postgres"] != "ok" || body.Checks["redis"] != "down" {
		t.Fatalf("health = %+v", body)
	}
}

func TestMetricsStreamBehindCompression(t *testing.T) {
	h := NewSystemHandler(unreachableRedis(t), fixedSessions(4), nil, zerolog.Nop())

	r := gin.New()
	r.Use(middleware.Brotli())
	r.GET("/api/v1/system/metrics", h.MetricsSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/system/metrics", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Accept-Encoding", "br")
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		t.Fatalf("Content-Encoding = %q, want none", enc)
	}

	lines := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- strings.TrimPrefix(sc.Text(), "data: ")
				return
			}
		}
		close(lines)
	}()

	var line string
	select {
	case l, ok := <-lines:
		if !ok {
			t.Fatal("stream ended before the first event")
		}
		line = l
	case <-time.After(3 * time.Second):
		t.Fatal("first metrics event did not arrive")
	}

	var m struct {
		LiveSessions int              `json:"live_sessions"`
		GoVersion    string           `json:"go_version"`
		Queues       map[string]int64 `json:"queues"`
	}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if m.LiveSessions != 4 || m.GoVersion == "" {
		t.Fatalf("metrics = %+v", m)
	}
	if m.Queues != nil {
		t.Fatalf("queues reported without redis: %v", m.Queues)
	}
}
