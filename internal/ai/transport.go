package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxReplyBytes bounds how much of a provider reply is read.
const maxReplyBytes = 4 << 20

// PostJSON sends body as JSON to url and decodes the JSON reply into out.
// Transport, status and decoding failures are mapped to the package sentinels.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ClassifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return ClassifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ClassifyStatus(resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding reply: %v", ErrInvalidResponse, err)
	}
	return nil
}
