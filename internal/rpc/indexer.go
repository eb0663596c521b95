package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPIndexer calls the document server's full-text index endpoints. No
// retry, same reasoning as HTTPTextExtractor.
type HTTPIndexer struct {
	BaseURL    string
	HTTPClient *http.Client
}

type indexRequest struct {
	FileName string `json:"file_name"`
	FileRef  string `json:"file_ref"`
	RawText  string `json:"raw_text"`
}

func (c *HTTPIndexer) IndexDocument(ctx context.Context, fileName, fileRef, rawText string) error {
	body, err := json.Marshal(indexRequest{FileName: fileName, FileRef: fileRef, RawText: rawText})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/index", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPIndexer) DeleteDocument(ctx context.Context, fileRef string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/index/"+fileRef, nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("indexer returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPIndexer) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultRPCCeiling}
}
