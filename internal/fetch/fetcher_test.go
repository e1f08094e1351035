package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/hcaptcha-monitor/internal/proxy"
)

func TestHTTPGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent/1.0" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f, err := NewHTTP(Options{Proxies: proxy.NewManager(nil, []string{"test-agent/1.0"})})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPGet_DefaultUserAgentIsBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			t.Errorf("user agent = %q, want a browser string", r.Header.Get("User-Agent"))
		}
	}))
	defer srv.Close()

	f, err := NewHTTP(Options{})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if _, err := f.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestHTTPGet_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f, _ := NewHTTP(Options{})
	_, err := f.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("code = %d", se.Code)
	}
}

func TestHTTPGet_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	f, _ := NewHTTP(Options{MaxBytes: 10})
	body, err := f.Get(context.Background(), srv.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if body != nil {
		t.Errorf("body = %q, want nil", body)
	}
}

func TestHTTPGet_MaxBytesExact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 10)))
	}))
	defer srv.Close()

	f, _ := NewHTTP(Options{MaxBytes: 10})
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(body) != 10 {
		t.Errorf("len = %d, want 10", len(body))
	}
}

func TestHTTPGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f, _ := NewHTTP(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Get(ctx, srv.URL); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
