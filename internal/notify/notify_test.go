package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/user/hcaptcha-monitor/internal/domain"
)

var release = domain.Release{
	Target:       domain.Target{Host: "example.com", SiteKey: "abc"},
	Version:      "abcdefg",
	ScriptVer:    "deadbeef",
	ResourcePath: "/deadbeef/abcdefg",
	ResourceURL:  "https://newassets.hcaptcha.com/deadbeef/abcdefg",
	DetectedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestWebhook_Payload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, nil).Notify(context.Background(), release); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title == "" || e.Description == "" || e.Color != embedColor {
		t.Errorf("embed = %+v", e)
	}
	want := map[string]string{
		"Website":  "example.com",
		"Sitekey":  "abc",
		"Version":  "abcdefg",
		"Resource": "[https://newassets.hcaptcha.com/deadbeef/abcdefg](https://newassets.hcaptcha.com/deadbeef/abcdefg)",
	}
	if len(e.Fields) != len(want) {
		t.Fatalf("fields = %+v", e.Fields)
	}
	for _, f := range e.Fields {
		if want[f.Name] != f.Value {
			t.Errorf("field %s = %q, want %q", f.Name, f.Value, want[f.Name])
		}
	}
	if e.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
}

func TestWebhook_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, nil).Notify(context.Background(), release); err == nil {
		t.Fatal("expected error on 429")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, domain.Release) error {
	s.calls++
	return s.err
}

func TestRouter_OneSinkFailing(t *testing.T) {
	failing := &stubNotifier{err: errors.New("down")}
	ok := &stubNotifier{}
	r := NewRouter(zaptest.NewLogger(t), failing, ok)

	err := r.Notify(context.Background(), release)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}
}

func TestRouter_Empty(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))
	if err := r.Notify(context.Background(), release); err != nil {
		t.Errorf("empty router: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, "hcaptcha:versions")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewRedisPublisher(mr.Addr(), "hcaptcha:versions")
	defer p.Close()
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Notify(ctx, release); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	var ev releaseEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Version != "abcdefg" || ev.Target.Host != "example.com" || len(ev.ID) != 64 {
		t.Errorf("event = %+v", ev)
	}
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewRedisPublisher(addr, "ch")
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Notify(ctx, release); err == nil {
		t.Fatal("expected publish error")
	}
}
