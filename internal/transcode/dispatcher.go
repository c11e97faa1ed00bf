package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mediastream/internal/observability/metrics"
	"mediastream/internal/sigv4"
)

// JobSpec is a backend-specific transcode job accepted by the Dispatcher.
// VideoJobSpec and AudioJobSpec are the only implementations.
type JobSpec interface {
	backendName() string
	submitPath() string
}

// Dispatcher submits transcode jobs asynchronously. Dispatch never blocks the
// caller and never surfaces an error: submission failures are logged and
// counted, nothing more. Upload ingestion must not depend on backend health.
type Dispatcher struct {
	backends map[string]*backendClient
	logger   *slog.Logger
	metrics  *metrics.Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

type backendClient struct {
	name       string
	endpoint   *url.URL
	signer     *sigv4.Signer
	httpClient *http.Client
}

// NewDispatcher constructs a Dispatcher from validated configuration.
func NewDispatcher(cfg Config, logger *slog.Logger, recorder *metrics.Recorder) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	creds := sigv4.Credentials{AccessKey: cfg.AccessKey, SecretKey: cfg.SecretKey}
	video, err := newBackendClient("mediaconvert", cfg.VideoEndpoint, creds, cfg.Region, timeout)
	if err != nil {
		return nil, err
	}
	audio, err := newBackendClient("elastictranscoder", cfg.AudioEndpoint, creds, cfg.Region, timeout)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		backends: map[string]*backendClient{
			video.name: video,
			audio.name: audio,
		},
		logger:  logger.With("component", "transcode"),
		metrics: recorder,
		timeout: timeout,
	}, nil
}

func newBackendClient(name, endpoint string, creds sigv4.Credentials, region string, timeout time.Duration) (*backendClient, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(endpoint), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s endpoint: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%s endpoint %q must be an absolute URL", name, endpoint)
	}
	return &backendClient{
		name:       name,
		endpoint:   parsed,
		signer:     sigv4.NewSigner(creds, region, name),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Dispatch hands the job to a background goroutine and returns immediately.
func (d *Dispatcher) Dispatch(spec JobSpec) {
	if spec == nil {
		return
	}
	d.metrics.DispatchStarted()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.submit(spec)
	}()
}

// Shutdown waits for in-flight submissions to finish or the context to
// expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) submit(spec JobSpec) {
	backend := d.backends[spec.backendName()]
	if backend == nil {
		d.logger.Error("no backend for job", "backend", spec.backendName())
		d.metrics.RecordDispatch(spec.backendName(), "failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	jobID, err := backend.createJob(ctx, spec)
	if err != nil {
		d.logger.Error("transcode job submission failed", "backend", backend.name, "error", err)
		d.metrics.RecordDispatch(backend.name, "failed")
		return
	}
	d.logger.Info("transcode job created", "backend", backend.name, "job_id", jobID)
	d.metrics.RecordDispatch(backend.name, "created")
}

type jobResponse struct {
	Job struct {
		ID string `json:"Id"`
	} `json:"Job"`
	ID string `json:"Id"`
}

func (c *backendClient) createJob(ctx context.Context, spec JobSpec) (string, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	target := *c.endpoint
	target.Path = strings.TrimRight(target.Path, "/") + spec.submitPath()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create job request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	c.signer.Sign(request, sigv4.PayloadHash(payload))
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read job response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("submit job: unexpected status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded jobResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", nil
	}
	if decoded.Job.ID != "" {
		return decoded.Job.ID, nil
	}
	return decoded.ID, nil
}
