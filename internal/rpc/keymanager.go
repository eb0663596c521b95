package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/doka-one/doka-document-core/internal/crypto"
	"github.com/doka-one/doka-document-core/internal/errs"
)

// HTTPKeyManagerClient fetches a customer's symmetric key from the key
// manager. CustomerKey is idempotent and retried the same way session
// resolution is.
type HTTPKeyManagerClient struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
}

type keyResponse struct {
	KeyBase64 string `json:"key_base64"`
}

func (c *HTTPKeyManagerClient) CustomerKey(ctx context.Context, customerCode string) ([]byte, error) {
	var key []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/key/"+customerCode, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("key manager returned %d", resp.StatusCode)
		}
		var out keyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(err)
		}
		decoded, err := decodeKey(out.KeyBase64)
		if err != nil {
			return backoff.Permanent(err)
		}
		key = decoded
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries())
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, errs.InternalTechnical(fmt.Errorf("fetching customer key: %w", err))
	}
	return key, nil
}

func decodeKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("customer key has %d bytes, want %d", len(key), crypto.KeySize)
	}
	return key, nil
}

func (c *HTTPKeyManagerClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *HTTPKeyManagerClient) maxRetries() uint64 {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}
