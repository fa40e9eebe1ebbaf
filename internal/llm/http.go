package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

const sseDataPrefix = "data: "
const sseDoneMarker = "[DONE]"

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// postJSON issues the request and maps non-2xx statuses onto the error
// taxonomy. The caller owns the response body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewLLMError(types.LLMBadResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewLLMError(types.LLMBadResponse, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, types.NewLLMError(types.LLMUpstream5xx,
			fmt.Errorf("upstream status %d: %s", resp.StatusCode, detail))
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, types.NewLLMError(types.LLMBadResponse,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail))
	}
	return resp, nil
}

// readContent extracts choices[0].message.content from a non-streaming
// completion response.
func readContent(body io.Reader) (string, error) {
	var parsed completionResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return "", types.NewLLMError(types.LLMBadResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewLLMError(types.LLMBadResponse, errors.New("response carried no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// consumeSSE reads "data: {json}" lines until the [DONE] terminator, passing
// each delta content chunk to fn. Returning ErrStopStream from fn ends the
// stream without error.
func consumeSSE(body io.Reader, fn func(chunk string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == sseDoneMarker {
			return nil
		}

		var parsed completionResponse
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			continue
		}
		if len(parsed.Choices) == 0 {
			continue
		}
		chunk := parsed.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if err := fn(chunk); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}
