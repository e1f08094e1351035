// Package hcaptcha talks to the captcha provider: it reads the current release
// id from the bootstrap script and trades it for the resource path of the
// asset bundle.
package hcaptcha

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/fetch"
)

// Endpoints are the provider URLs the client talks to.
type Endpoints struct {
	BootstrapURL  string
	SiteConfigURL string
	AssetHost     string
}

// DefaultEndpoints returns the production provider URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		BootstrapURL:  "https://hcaptcha.com/1/api.js?render=explicit&onload=hcaptchaOnLoad",
		SiteConfigURL: "https://api2.hcaptcha.com/checksiteconfig",
		AssetHost:     "https://newassets.hcaptcha.com",
	}
}

// Client resolves versions and resource paths.
type Client struct {
	script    fetch.Fetcher
	api       fetch.Fetcher
	endpoints Endpoints
}

// NewClient creates a Client. script fetches the bootstrap script and may be a
// headless browser; api is used for the JSON site-config endpoint.
func NewClient(script, api fetch.Fetcher, endpoints Endpoints) *Client {
	return &Client{script: script, api: api, endpoints: endpoints}
}

// Version fetches the bootstrap script and extracts the release id.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.script.Get(ctx, c.endpoints.BootstrapURL)
	if err != nil {
		return "", &StageError{Stage: StageExtract, Kind: KindNetwork, Err: err}
	}

	text := string(body)
	version, err := ExtractVersion(text)
	if err != nil && looksLikeHTML(text) {
		return ExtractVersionFromHTML(text)
	}
	return version, err
}

// SiteConfigURL builds the site-config check URL for a target and version.
func (c *Client) SiteConfigURL(target domain.Target, version string) string {
	q := url.Values{}
	q.Set("v", version)
	q.Set("host", target.Host)
	q.Set("sitekey", target.SiteKey)

	sep := "?"
	if strings.Contains(c.endpoints.SiteConfigURL, "?") {
		sep = "&"
	}
	return c.endpoints.SiteConfigURL + sep + q.Encode()
}

// ResolveResourcePath calls the site-config endpoint and decodes the resource
// path out of the returned token. Any stage failing aborts the resolution.
func (c *Client) ResolveResourcePath(ctx context.Context, target domain.Target, version string) (string, error) {
	body, err := c.api.Get(ctx, c.SiteConfigURL(target, version))
	if err != nil {
		return "", &StageError{Stage: StageLocate, Kind: KindNetwork, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", &StageError{Stage: StageLocate, Kind: KindParse, Err: err}
	}

	cfg, _ := doc["c"].(map[string]any)
	token, ok := cfg["req"].(string)
	if !ok {
		return "", stageErr(StageLocate, KindMissingField, `response has no string field "c.req"`)
	}

	return ResourcePathFromToken(token)
}
