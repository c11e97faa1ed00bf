package transcode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mediastream/internal/observability/metrics"
)

type capturedJob struct {
	path string
	auth string
	body []byte
}

type jobRecorder struct {
	mu   sync.Mutex
	jobs []capturedJob
}

func (r *jobRecorder) handler(status int, response string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.jobs = append(r.jobs, capturedJob{path: req.URL.Path, auth: req.Header.Get("Authorization"), body: body})
		r.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}
}

func (r *jobRecorder) captured() []capturedJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]capturedJob, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, videoURL, audioURL string, recorder *metrics.Recorder) *Dispatcher {
	t.Helper()
	cfg := validConfig()
	cfg.VideoEndpoint = videoURL
	cfg.AudioEndpoint = audioURL
	cfg.RequestTimeout = 2 * time.Second
	dispatcher, err := NewDispatcher(cfg, testLogger(), recorder)
	if err != nil {
		t.Fatalf("NewDispatcher returned error: %v", err)
	}
	return dispatcher
}

func waitForDispatches(t *testing.T, dispatcher *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(ctx); err != nil {
		t.Fatalf("dispatcher shutdown: %v", err)
	}
}

func TestDispatchSubmitsVideoJob(t *testing.T) {
	videoJobs := &jobRecorder{}
	videoServer := httptest.NewServer(videoJobs.handler(http.StatusCreated, `{"Job":{"Id":"job-42"}}`))
	defer videoServer.Close()
	audioServer := httptest.NewServer(http.NotFoundHandler())
	defer audioServer.Close()

	recorder := metrics.New()
	dispatcher := newTestDispatcher(t, videoServer.URL, audioServer.URL, recorder)

	builder := NewVideoJobBuilder("s3://media", "s3://media", DefaultVideoProfile())
	dispatcher.Dispatch(builder.Build("video/abc-movie.mp4"))
	waitForDispatches(t, dispatcher)

	jobs := videoJobs.captured()
	if len(jobs) != 1 {
		t.Fatalf("expected one submission, got %d", len(jobs))
	}
	if jobs[0].path != "/2017-08-29/jobs" {
		t.Fatalf("unexpected path %q", jobs[0].path)
	}
	if !strings.Contains(jobs[0].auth, "/mediaconvert/aws4_request") {
		t.Fatalf("expected mediaconvert signature, got %q", jobs[0].auth)
	}

	var decoded VideoJobSpec
	if err := json.Unmarshal(jobs[0].body, &decoded); err != nil {
		t.Fatalf("decode submitted job: %v", err)
	}
	if decoded.Settings.Inputs[0].FileInput != "s3://media/video/abc-movie.mp4" {
		t.Fatalf("unexpected file input %q", decoded.Settings.Inputs[0].FileInput)
	}

	events, active := recorder.DispatchCounts()
	if events[metrics.DispatchLabel{Backend: "mediaconvert", Status: "created"}] != 1 {
		t.Fatalf("unexpected dispatch counts %v", events)
	}
	if active != 0 {
		t.Fatalf("expected drained gauge, got %d", active)
	}
}

func TestDispatchSubmitsAudioJobToAudioBackend(t *testing.T) {
	videoServer := httptest.NewServer(http.NotFoundHandler())
	defer videoServer.Close()
	audioJobs := &jobRecorder{}
	audioServer := httptest.NewServer(audioJobs.handler(http.StatusOK, `{"Job":{"Id":"et-7"}}`))
	defer audioServer.Close()

	recorder := metrics.New()
	dispatcher := newTestDispatcher(t, videoServer.URL, audioServer.URL, recorder)

	builder := NewAudioJobBuilder("pipeline", "preset", "mp3")
	dispatcher.Dispatch(builder.Build("audio/xyz-song.mp3"))
	waitForDispatches(t, dispatcher)

	jobs := audioJobs.captured()
	if len(jobs) != 1 {
		t.Fatalf("expected one submission, got %d", len(jobs))
	}
	if jobs[0].path != "/2012-09-25/jobs" {
		t.Fatalf("unexpected path %q", jobs[0].path)
	}

	var decoded AudioJobSpec
	if err := json.Unmarshal(jobs[0].body, &decoded); err != nil {
		t.Fatalf("decode submitted job: %v", err)
	}
	if decoded.Output.Key != "audio/xyz-song.mp3.transcoded.mp3" {
		t.Fatalf("unexpected output key %q", decoded.Output.Key)
	}

	events, _ := recorder.DispatchCounts()
	if events[metrics.DispatchLabel{Backend: "elastictranscoder", Status: "created"}] != 1 {
		t.Fatalf("unexpected dispatch counts %v", events)
	}
}

func TestDispatchSwallowsBackendFailures(t *testing.T) {
	videoJobs := &jobRecorder{}
	videoServer := httptest.NewServer(videoJobs.handler(http.StatusBadGateway, "backend down"))
	defer videoServer.Close()
	audioServer := httptest.NewServer(http.NotFoundHandler())
	defer audioServer.Close()

	recorder := metrics.New()
	dispatcher := newTestDispatcher(t, videoServer.URL, audioServer.URL, recorder)

	builder := NewVideoJobBuilder("s3://media", "s3://media", DefaultVideoProfile())
	dispatcher.Dispatch(builder.Build("video/abc-movie.mp4"))
	waitForDispatches(t, dispatcher)

	events, _ := recorder.DispatchCounts()
	if events[metrics.DispatchLabel{Backend: "mediaconvert", Status: "failed"}] != 1 {
		t.Fatalf("expected failed dispatch, got %v", events)
	}
}

func TestDispatchIgnoresNilSpec(t *testing.T) {
	videoServer := httptest.NewServer(http.NotFoundHandler())
	defer videoServer.Close()
	audioServer := httptest.NewServer(http.NotFoundHandler())
	defer audioServer.Close()

	dispatcher := newTestDispatcher(t, videoServer.URL, audioServer.URL, metrics.New())
	dispatcher.Dispatch(nil)
	waitForDispatches(t, dispatcher)
}

func TestNewDispatcherRejectsRelativeEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.VideoEndpoint = "convert.example.com"
	if _, err := NewDispatcher(cfg, testLogger(), metrics.New()); err == nil {
		t.Fatal("expected error for relative endpoint")
	}
}
