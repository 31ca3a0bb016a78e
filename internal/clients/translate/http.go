package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// HTTPClient talks to an external translation service over JSON. The service
// contract is a single POST endpoint taking {text, source_lang, target_lang}
// and returning {translation}.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func (c *HTTPClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	payload, err := json.Marshal(translateRequest{Text: text, SourceLang: from, TargetLang: to})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation service: status %d", resp.StatusCode)
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translation service: decode response: %w", err)
	}
	translated := strings.TrimSpace(out.Translation)
	if translated == "" {
		return "", fmt.Errorf("translation service: empty translation")
	}
	return translated, nil
}
