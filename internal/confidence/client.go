package confidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client asks an Ollama-compatible model to grade a volume estimate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) Assess(ctx context.Context, a Assessment) (*Result, error) {
	genReq := generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(a),
		Format: "json",
		Stream: false,
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return parseResult(genResp.Response)
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func buildPrompt(a Assessment) string {
	return fmt.Sprintf(
		"You are reviewing a liquid level estimate made from a single camera frame.\n"+
			"Glass shape: %s\n"+
			"Water line: %s\n"+
			"Estimated volume: %.1f ml (%.0f%% full)\n\n"+
			"How confident should we be in this estimate? Respond with JSON only:\n"+
			`{"confidence_score": <number between 0 and 1>, "reasoning": "<one short sentence>"}`,
		a.GlassShape, waterLineDescription(a.Level), a.VolumeML, a.Level)
}

func waterLineDescription(level float64) string {
	switch {
	case level >= 90:
		return "steady near the rim"
	case level >= 60:
		return "steady in the upper half of the glass"
	case level >= 40:
		return "steady around the middle of the glass"
	case level >= 10:
		return "steady in the lower half of the glass"
	default:
		return "barely visible near the base"
	}
}

// parseResult pulls the first JSON object out of the model's reply. Models
// wrap their answer in prose often enough that a strict decode would throw
// away usable responses.
func parseResult(text string) (*Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return &result, nil
}
