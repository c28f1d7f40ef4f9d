// Package dicomweb is a client for DICOMweb RESTful services (QIDO-RS,
// WADO-RS and STOW-RS): searching, retrieving and storing DICOM studies,
// series, instances and pixel frames against a remote archive.
//
// DICOM JSON responses are converted to native datasets by the dicomjson
// package; multipart/related bodies are framed and unframed by the related
// package. Both are usable on their own.
package dicomweb

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrsinham/dicomweb/dicomjson"
	"github.com/mrsinham/dicomweb/related"
)

// Config holds the connection settings for a DICOMweb service.
type Config struct {
	// URL is the base resource locator of the service, e.g.
	// "https://archive.example.com:8080/wado-rs".
	URL string `yaml:"url"`
	// Username and Password enable HTTP basic authentication when set.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	// CABundle is the path to a CA bundle file in PEM format, used to verify
	// the server certificate on https URLs. Environment variables and a
	// leading "~" are expanded.
	CABundle string `yaml:"ca_bundle,omitempty"`
	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Client connects to and interacts with a DICOMweb RESTful service.
type Client struct {
	// BaseURL is the service root all request URLs are built from.
	BaseURL string
	// Logger receives request traces and tolerated conversion anomalies.
	Logger *slog.Logger

	httpClient *http.Client
	username   string
	password   string
}

// NewClient creates a client with an HTTP client derived from the config
// (timeout, CA bundle).
func NewClient(cfg Config) (*Client, error) {
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTPClient(cfg, httpClient)
}

// NewClientWithHTTPClient creates a client using a specific *http.Client.
// This allows passing an instrumented client. The config's Timeout and
// CABundle are ignored in favor of the given client's settings.
func NewClientWithHTTPClient(cfg Config, httpClient *http.Client) (*Client, error) {
	baseURL, err := validateBaseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Username != "" && cfg.Password == "" {
		slog.Warn("no password provided", "username", cfg.Username)
	}
	return &Client{
		BaseURL:    baseURL,
		Logger:     slog.Default(),
		httpClient: httpClient,
		username:   cfg.Username,
		password:   cfg.Password,
	}, nil
}

// validateBaseURL checks the scheme and strips a trailing slash.
func validateBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme %q is not supported", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", rawURL)
	}
	return strings.TrimRight(rawURL, "/"), nil
}

// newHTTPClient builds an HTTP client honoring the config's timeout and,
// for https URLs, its CA bundle.
func newHTTPClient(cfg Config) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	if cfg.CABundle != "" && strings.HasPrefix(cfg.URL, "https") {
		path, err := expandPath(cfg.CABundle)
		if err != nil {
			return nil, err
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no PEM certificates", path)
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		}
	}
	return client, nil
}

// expandPath expands environment variables and a leading "~" in a file path.
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path, nil
}

// httpGet performs a GET request and returns the response body and headers.
// Non-2xx responses are errors; no retries, no interpretation beyond that.
func (c *Client) httpGet(ctx context.Context, rawURL string, params url.Values, accept string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	c.authorize(req)

	c.Logger.Debug("GET", "url", req.URL.String())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response from %s: %w", rawURL, err)
	}
	return body, resp.Header, nil
}

// httpPost performs a POST request with the given body and content type.
func (c *Client) httpPost(ctx context.Context, rawURL string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	c.Logger.Debug("POST", "url", rawURL, "bytes", len(body))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// getJSON performs a GET accepting "application/dicom+json" and decodes the
// response into DICOM JSON objects. A single-object response is wrapped into
// a one-element slice; an empty body yields nil.
func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values) ([]dicomjson.Object, error) {
	body, _, err := c.httpGet(ctx, rawURL, params, "application/dicom+json")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var objects []dicomjson.Object
	if err := json.Unmarshal(body, &objects); err != nil {
		var single dicomjson.Object
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode DICOM JSON from %s: %w", rawURL, err)
		}
		objects = []dicomjson.Object{single}
	}
	return objects, nil
}

// getMultipart performs a GET with the given multipart Accept header and
// returns the decoded leaf payloads.
func (c *Client) getMultipart(ctx context.Context, rawURL string, params url.Values, accept string) ([][]byte, error) {
	body, headers, err := c.httpGet(ctx, rawURL, params, accept)
	if err != nil {
		return nil, err
	}
	parts, err := related.Decode(body, headers.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode multipart response from %s: %w", rawURL, err)
	}
	return parts, nil
}

// logWarnings reports tolerated conversion anomalies through the client
// logger.
func (c *Client) logWarnings(warns dicomjson.Warnings) {
	for _, w := range warns {
		c.Logger.Warn("non-conformant DICOM JSON attribute", "tag", w.Tag, "detail", w.Message)
	}
}
