package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/doka-one/doka-document-core/internal/errs"
)

// HTTPSessionClient resolves sessions against the session manager's REST
// endpoint. Resolve is idempotent and retried with bounded exponential
// backoff (spec.md §7): a slow session manager never blocks a file-pipeline
// phase transition on a single flaky read.
type HTTPSessionClient struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
}

func (c *HTTPSessionClient) Resolve(ctx context.Context, sessionToken string) (SessionInfo, error) {
	var info SessionInfo

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/session/"+sessionToken, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return err // transient: retry
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&info)
		case http.StatusUnauthorized, http.StatusNotFound:
			return backoff.Permanent(errs.Authorization(errs.CodeInvalidToken, "session token rejected"))
		default:
			return fmt.Errorf("session manager returned %d", resp.StatusCode)
		}
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries())
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		var fe *errs.Error
		if errs.As(err, &fe) {
			return SessionInfo{}, fe
		}
		return SessionInfo{}, errs.InternalTechnical(fmt.Errorf("resolving session: %w", err))
	}
	return info, nil
}

func (c *HTTPSessionClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *HTTPSessionClient) maxRetries() uint64 {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}
