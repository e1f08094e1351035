package hcaptcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/fetch"
)

type fakeProvider struct {
	script     string
	siteConfig string
	status     int
	lastQuery  map[string]string
	lastUA     string
}

func (p *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/1/api.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(p.script))
	})
	mux.HandleFunc("/checksiteconfig", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p.lastQuery = map[string]string{"v": q.Get("v"), "host": q.Get("host"), "sitekey": q.Get("sitekey")}
		p.lastUA = r.Header.Get("User-Agent")
		if p.status != 0 {
			w.WriteHeader(p.status)
			return
		}
		w.Write([]byte(p.siteConfig))
	})
	return mux
}

func newTestClient(t *testing.T, p *fakeProvider) *Client {
	t.Helper()
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)

	f, err := fetch.NewHTTP(fetch.Options{})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	return NewClient(f, f, Endpoints{
		BootstrapURL:  srv.URL + "/1/api.js?render=explicit&onload=hcaptchaOnLoad",
		SiteConfigURL: srv.URL + "/checksiteconfig",
		AssetHost:     srv.URL,
	})
}

var target = domain.Target{Host: "example.com", SiteKey: "abc"}

func TestClientVersion(t *testing.T) {
	c := newTestClient(t, &fakeProvider{script: `!function(){var u="/captcha/v1/deadbeef/static/hcaptcha.html"}()`})
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "deadbeef" {
		t.Errorf("version = %q", v)
	}
}

func TestClientVersion_HTMLFallback(t *testing.T) {
	c := newTestClient(t, &fakeProvider{script: `<html><script src="&#x2F;captcha&#x2F;v1&#x2F;abc123&#x2F;static&#x2F;x.js"></script></html>`})
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "abc123" {
		t.Errorf("version = %q", v)
	}
}

func TestClientVersion_NotFound(t *testing.T) {
	c := newTestClient(t, &fakeProvider{script: "console.log(1)"})
	_, err := c.Version(context.Background())
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestResolveResourcePath(t *testing.T) {
	p := &fakeProvider{siteConfig: `{"c":{"type":"hsw","req":"` + makeToken(`{"l":"/deadbeef/abcdefg"}`) + `"},"pass":true}`}
	c := newTestClient(t, p)

	got, err := c.ResolveResourcePath(context.Background(), target, "deadbeef")
	if err != nil {
		t.Fatalf("ResolveResourcePath: %v", err)
	}
	if got != "/deadbeef/abcdefg" {
		t.Errorf("path = %q", got)
	}
	if p.lastQuery["v"] != "deadbeef" || p.lastQuery["host"] != "example.com" || p.lastQuery["sitekey"] != "abc" {
		t.Errorf("query = %v", p.lastQuery)
	}
	if !strings.HasPrefix(p.lastUA, "Mozilla/5.0") {
		t.Errorf("user agent = %q, want a desktop browser", p.lastUA)
	}
}

func TestResolveResourcePath_Errors(t *testing.T) {
	cases := []struct {
		name       string
		siteConfig string
		status     int
		kind       Kind
		transient  bool
	}{
		{name: "server error", status: http.StatusBadGateway, kind: KindNetwork, transient: true},
		{name: "malformed json", siteConfig: `{"c":`, kind: KindParse},
		{name: "missing c", siteConfig: `{"pass":true}`, kind: KindMissingField},
		{name: "missing req", siteConfig: `{"c":{"type":"hsw"}}`, kind: KindMissingField},
		{name: "req not string", siteConfig: `{"c":{"req":1}}`, kind: KindMissingField},
		{name: "malformed token", siteConfig: `{"c":{"req":"nodots"}}`, kind: KindMalformedToken},
		{name: "missing l", siteConfig: `{"c":{"req":"` + makeToken(`{"x":1}`) + `"}}`, kind: KindMissingField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakeProvider{siteConfig: tc.siteConfig, status: tc.status})
			_, err := c.ResolveResourcePath(context.Background(), target, "deadbeef")
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StageError, got %T", err)
			}
			if se.Transient() != tc.transient {
				t.Errorf("Transient() = %v, want %v", se.Transient(), tc.transient)
			}
		})
	}
}

func TestSiteConfigURL_ExistingQuery(t *testing.T) {
	c := NewClient(nil, nil, Endpoints{SiteConfigURL: "https://api.example/check?x=1"})
	got := c.SiteConfigURL(target, "v1")
	if got != "https://api.example/check?x=1&host=example.com&sitekey=abc&v=v1" {
		t.Errorf("url = %q", got)
	}
}

func TestClassify(t *testing.T) {
	stage, kind := Classify(&StageError{Stage: StageArchive, Kind: KindFilesystem, Err: errors.New("x")})
	if stage != StageArchive || kind != KindFilesystem {
		t.Errorf("Classify = %s/%s", stage, kind)
	}
	stage, kind = Classify(errors.New("plain"))
	if stage != "unknown" || kind != "unknown" {
		t.Errorf("Classify(plain) = %s/%s", stage, kind)
	}
}
