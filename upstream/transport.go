package upstream

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/semaphore"

	"github.com/zlib-go/zlib/zlog"
)

// extraStatusCodesToRetry are treated as transient even though they are not
// covered by retryablehttp's default policy — some book-search backends
// answer with 403 under load instead of 429.
var extraStatusCodesToRetry = []int{403, 429}

// Transport is the shared HTTP client used by every upstream.Client
// implementation. It bounds concurrency, retries transient failures, and
// enforces a per-call timeout.
type Transport struct {
	client         retryablehttp.Client
	parallelismSem *semaphore.Weighted
	callTimeout    time.Duration
}

// NewTransport builds a Transport with the given parallelism bound and
// per-call timeout (spec §5's default is 30s).
func NewTransport(maxParallelism int, callTimeout time.Duration) *Transport {
	if maxParallelism < 1 {
		maxParallelism = 1
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	t := &Transport{
		client:         *retryablehttp.NewClient(),
		parallelismSem: semaphore.NewWeighted(int64(maxParallelism)),
		callTimeout:    callTimeout,
	}
	t.client.CheckRetry = t.checkRetry
	t.client.Logger = debugLogger{}
	t.client.RetryMax = 2
	t.client.RetryWaitMin = 500 * time.Millisecond
	t.client.RetryWaitMax = 5 * time.Second
	return t
}

func (t *Transport) SetRetryMax(n int)                    { t.client.RetryMax = n }
func (t *Transport) SetRetryWaitMin(d time.Duration)      { t.client.RetryWaitMin = d }
func (t *Transport) SetRetryWaitMax(d time.Duration)      { t.client.RetryWaitMax = d }

// Do issues method/url with the configured retry policy, per-call timeout,
// and parallelism bound.
func (t *Transport) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header
	}

	if err := t.parallelismSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.parallelismSem.Release(1)

	return t.client.Do(req)
}

func (t *Transport) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	should, policyErr := retryablehttp.ErrorPropagatedRetryPolicy(ctx, resp, err)
	if policyErr != nil {
		return should, policyErr
	}
	if should {
		if err != nil {
			zlog.Warnf("retrying upstream request: %s", err)
		} else {
			zlog.Warnf("retrying upstream request: got status code %d", resp.StatusCode)
		}
		return true, nil
	}

	if resp == nil || err != nil {
		return false, err
	}
	for _, code := range extraStatusCodesToRetry {
		if code == resp.StatusCode {
			zlog.Warnf("retrying upstream request: got status code %d", code)
			return true, nil
		}
	}
	return false, nil
}

type debugLogger struct{}

func (debugLogger) Printf(msg string, v ...any) {
	zlog.Debugf(msg, v...)
}
