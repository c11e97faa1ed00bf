// Package objectstore implements a minimal S3-compatible client used to
// persist original upload blobs. Objects are written with a public-read ACL
// so derived URLs are servable without further signing.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediastream/internal/sigv4"
)

const defaultRequestTimeout = 30 * time.Second

// Config describes the bucket the service writes uploads to. Endpoint,
// Bucket, AccessKey, and SecretKey are required.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	PublicEndpoint string
	RequestTimeout time.Duration
}

// Validate reports the missing required settings, if any.
func (cfg Config) Validate() error {
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		missing = append(missing, "access key")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("object store config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (cfg Config) requestTimeout() time.Duration {
	if cfg.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return cfg.RequestTimeout
}

// ObjectRef identifies a stored object by its final key and public URL.
type ObjectRef struct {
	Key string
	URL string
}

// Client uploads objects to a single bucket over the S3 REST API.
type Client struct {
	cfg        Config
	endpoint   *url.URL
	signer     *sigv4.Signer
	httpClient *http.Client
}

// New constructs a Client for the configured bucket. It fails when required
// settings are missing or the endpoint cannot be parsed into a host.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse object store endpoint: %w", err)
		}
		endpoint = parsed.Host
	}
	baseURL := &url.URL{Scheme: scheme, Host: endpoint}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("object store endpoint %q has no host", cfg.Endpoint)
	}
	sanitized := cfg
	sanitized.Bucket = strings.TrimSpace(cfg.Bucket)
	sanitized.RequestTimeout = cfg.requestTimeout()
	return &Client{
		cfg:      sanitized,
		endpoint: baseURL,
		signer: sigv4.NewSigner(
			sigv4.Credentials{AccessKey: cfg.AccessKey, SecretKey: cfg.SecretKey},
			cfg.Region,
			"s3",
		),
		httpClient: &http.Client{Timeout: sanitized.RequestTimeout},
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// BucketURI returns the s3:// form of the bucket, used as the default prefix
// for transcode job inputs and destinations.
func (c *Client) BucketURI() string {
	return "s3://" + c.cfg.Bucket
}

// Upload writes the body under key with a public-read ACL and returns the
// final key together with its public URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, body []byte) (ObjectRef, error) {
	finalKey := strings.TrimLeft(strings.TrimSpace(key), "/")
	if finalKey == "" {
		return ObjectRef{}, fmt.Errorf("upload object: empty key")
	}
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(body))
	if err != nil {
		return ObjectRef{}, fmt.Errorf("create upload request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	request.Header.Set("x-amz-acl", "public-read")
	c.signer.Sign(request, sigv4.PayloadHash(body))
	response, err := c.httpClient.Do(request)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("upload object %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return ObjectRef{}, fmt.Errorf("upload object %s: unexpected status %d", finalKey, response.StatusCode)
	}
	return ObjectRef{Key: finalKey, URL: c.PublicURL(finalKey)}, nil
}

// PublicURL derives the address clients can fetch the object from. It prefers
// the configured public endpoint (typically a CDN) and falls back to the
// bucket path on the storage endpoint.
func (c *Client) PublicURL(key string) string {
	trimmedKey := strings.TrimLeft(strings.TrimSpace(key), "/")
	if base := strings.TrimRight(strings.TrimSpace(c.cfg.PublicEndpoint), "/"); base != "" {
		if trimmedKey == "" {
			return base
		}
		return base + "/" + trimmedKey
	}
	return c.objectURL(trimmedKey).String()
}

func (c *Client) objectURL(finalKey string) *url.URL {
	path := "/" + strings.TrimLeft(c.cfg.Bucket, "/")
	if finalKey != "" {
		path += "/" + finalKey
	}
	u := *c.endpoint
	u.Path = path
	return &u
}
