package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTextExtractor calls a Tika-compatible extraction endpoint once per
// file. No retry: a failure here is routed into the upload pipeline's
// rollback path rather than hidden behind a local resend.
type HTTPTextExtractor struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *HTTPTextExtractor) Parse(ctx context.Context, raw []byte) (TikaResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/tika", bytes.NewReader(raw))
	if err != nil {
		return TikaResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return TikaResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TikaResult{}, fmt.Errorf("tika returned %d", resp.StatusCode)
	}

	var flat map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&flat); err != nil {
		return TikaResult{}, err
	}

	content := flat[TikaContentMetaKey]
	metadata := make(map[string]string, len(flat))
	for k, v := range flat {
		if k == TikaContentMetaKey {
			continue
		}
		metadata[k] = v
	}
	return TikaResult{MimeType: flat["Content-Type"], FullText: content, Metadata: metadata}, nil
}

// TikaContentMetaKey is the key Tika uses for the extracted body text inside
// its otherwise-flat response object; it must never be treated as a
// file_metadata row (original_source/file_delegate.rs filters the same key
// under the name TIKA_CONTENT_META).
const TikaContentMetaKey = "X-TIKA:content"

// defaultRPCCeiling is the 60-minute upper bound spec.md §5 sets on external
// RPCs, to accommodate large-file text extraction.
const defaultRPCCeiling = 60 * time.Minute

func (c *HTTPTextExtractor) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultRPCCeiling}
}
