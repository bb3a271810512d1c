package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/authtoken"
	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/cardkeeper/cardkeeper/internal/wire"
	"github.com/sethvargo/go-retry"
)

// Transport is the network boundary of the sync engine: one pull and one push
// per cycle. Implementations must report every failure as common.ErrSync.
type Transport interface {
	Pull(ctx context.Context, since *time.Time) (*wire.PullResponse, error)
	Push(ctx context.Context, req *wire.PushRequest) (*wire.PushResponse, error)
}

const (
	defaultTimeout = 30 * time.Second
	tokenTTL       = 2 * time.Minute
	maxRetries     = 3
)

// HTTPTransport talks JSON over HTTP to the sync server. Transient failures
// (network errors, 5xx) are retried with fibonacci backoff; retrying a push
// is safe because creations carry idempotency tokens.
type HTTPTransport struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewHTTPTransport(baseURL, secret string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPTransport{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Pull(ctx context.Context, since *time.Time) (*wire.PullResponse, error) {
	u, err := url.Parse(t.baseURL + "/api/v1/sync/pull")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid server url: %w", common.ErrSync, err)
	}
	if since != nil {
		q := u.Query()
		q.Set("last_sync_timestamp", since.Format(time.RFC3339Nano))
		u.RawQuery = q.Encode()
	}

	var out wire.PullResponse
	if err := t.do(ctx, http.MethodGet, u.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Push(ctx context.Context, req *wire.PushRequest) (*wire.PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode push payload: %w", common.ErrSync, err)
	}

	var out wire.PushResponse
	if err := t.do(ctx, http.MethodPost, t.baseURL+"/api/v1/sync/push", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL string, body []byte, out any) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if t.secret != "" {
			tok, err := authtoken.Mint(t.secret, tokenTTL, time.Now())
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return retry.RetryableError(fmt.Errorf("server error %s: %s", resp.Status, b))
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("unexpected status %s: %s", resp.Status, b)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", common.ErrSync, method, rawURL, err)
	}
	return nil
}
