package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	contagionhttp "github.com/aukilabs/contagion/http"
	"github.com/aukilabs/contagion/websocket"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	xwebsocket "golang.org/x/net/websocket"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	defaultTimeout = time.Second * 10
)

// Request is the body of a smoke test request.
type Request struct {
	// The base URL of the contagion server to test, e.g. http://localhost:4000.
	Endpoint string `json:"endpoint"`

	Timeout time.Duration `json:"timeout"`
}

// Results is the outcome of a smoke test.
type Results struct {
	Endpoint string        `json:"endpoint"`
	Version  string        `json:"version,omitempty"`
	RunID    string        `json:"run_id,omitempty"`
	Time     uint32        `json:"time"`
	Steps    []Step        `json:"steps"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
}

// Step is a check performed during a smoke test.
type Step struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type Options struct {
	UserAgent string

	// The client used for HTTP checks. Defaults to http.DefaultClient.
	Client *http.Client
}

// Run checks that the server at the given endpoint is healthy, reports its
// status and streams simulation reports to observers.
func Run(ctx context.Context, opts Options, req Request) (Results, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	endpoint := strings.TrimSuffix(req.Endpoint, "/")
	res := Results{Endpoint: endpoint}
	start := time.Now()

	steps := []struct {
		name string
		run  func() error
	}{
		{
			name: "health",
			run: func() error {
				_, err := get(ctx, opts, endpoint+"/health")
				return err
			},
		},
		{
			name: "version",
			run: func() error {
				b, err := get(ctx, opts, endpoint+"/version")
				res.Version = string(b)
				return err
			},
		},
		{
			name: "status",
			run: func() error {
				b, err := get(ctx, opts, endpoint+"/status")
				if err != nil {
					return err
				}

				var status contagionhttp.Status
				if err := json.Unmarshal(b, &status); err != nil {
					return errors.New("decoding status failed").Wrap(err)
				}
				res.RunID = status.RunID
				return nil
			},
		},
		{
			name: "observe",
			run: func() error {
				t, err := observe(ctx, opts, endpoint, res.RunID)
				res.Time = t
				return err
			},
		},
	}

	for _, s := range steps {
		stepStart := time.Now()
		err := s.run()

		step := Step{
			Name:     s.name,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			step.Error = err.Error()
		}
		res.Steps = append(res.Steps, step)

		if err != nil {
			res.Duration = time.Since(start)
			return res, errors.New("smoke test failed").
				WithType(ErrTypeSmokeTestFailed).
				WithTag("endpoint", endpoint).
				WithTag("step", s.name).
				Wrap(err)
		}
	}

	res.Duration = time.Since(start)
	res.Success = true
	return res, nil
}

func get(ctx context.Context, opts Options, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New("creating request failed").
			WithTag("url", url).
			Wrap(err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, errors.New("request failed").
			WithTag("url", url).
			Wrap(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New("reading response failed").
			WithTag("url", url).
			Wrap(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code").
			WithTag("url", url).
			WithTag("status_code", resp.StatusCode)
	}
	return b, nil
}

// observe connects as an observer and waits for the hello frame and a report.
// It returns the time of the received report.
func observe(ctx context.Context, opts Options, endpoint, runID string) (uint32, error) {
	wsURL := "ws" + strings.TrimPrefix(endpoint, "http") + "/observe"

	config, err := xwebsocket.NewConfig(wsURL, endpoint)
	if err != nil {
		return 0, errors.New("creating websocket config failed").
			WithTag("url", wsURL).
			Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return 0, errors.New("dialing observer stream failed").
			WithTag("url", wsURL).
			Wrap(err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()

	hello, err := websocket.ReceiveFrame(conn, time.Until(deadline))
	if err != nil {
		return 0, errors.New("receiving hello frame failed").Wrap(err)
	}
	if hello.Type != websocket.FrameTypeHello {
		return 0, errors.New("first frame is not a hello frame").
			WithTag("frame_type", hello.Type)
	}
	if runID != "" && hello.RunID != runID {
		return 0, errors.New("hello frame run id does not match the status").
			WithTag("status_run_id", runID).
			WithTag("frame_run_id", hello.RunID)
	}

	report, err := websocket.ReceiveFrame(conn, time.Until(deadline))
	if err != nil {
		return 0, errors.New("receiving report frame failed").Wrap(err)
	}
	if report.Type != websocket.FrameTypeReport || report.Report == nil {
		return 0, errors.New("second frame is not a report frame").
			WithTag("frame_type", report.Type)
	}
	return report.Report.Time, nil
}

// HandleSmokeTest runs a smoke test against the endpoint given in the request
// body and responds with the results as JSON.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		res, err := Run(ctx, opts, req)
		statusCode := http.StatusOK
		if err != nil {
			logs.Warn(err)
			statusCode = http.StatusBadGateway
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			logs.Warn(errors.New("writing smoke test results failed").Wrap(err))
		}
	}
}
