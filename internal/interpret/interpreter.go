package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/types"
)

// ErrMalformed marks extraction output that cannot be turned into a valid
// intent: unparseable JSON or a structural invariant violation. It is a
// content failure, distinct from the backend being unreachable.
var ErrMalformed = errors.New("malformed intent")

// Interpreter turns a free-text service request into a structured intent.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (*types.Intent, error)
}

// LLMInterpreter extracts intents with an Ollama-compatible chat endpoint.
// The model is a black box; this client only enforces the intent contract
// on whatever comes back.
type LLMInterpreter struct {
	cfg    func() config.InterpreterConfig
	client *http.Client
}

func NewLLMInterpreter(cfg func() config.InterpreterConfig) *LLMInterpreter {
	return &LLMInterpreter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg().Timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (i *LLMInterpreter) Interpret(ctx context.Context, text string) (*types.Intent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty request text", ErrMalformed)
	}
	cfg := i.cfg()

	body := chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Stream: false,
		Format: "json",
		Options: map[string]interface{}{
			"temperature": cfg.Temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("interpretation backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("interpretation backend returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}

	return ParseIntent(out.Message.Content)
}

// ParseIntent decodes extraction output into a validated intent. The payload
// may be wrapped in a fenced code block or surrounded by prose; the first
// top-level JSON object is used.
func ParseIntent(content string) (*types.Intent, error) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in extraction output", ErrMalformed)
	}

	var intent types.Intent
	if err := json.Unmarshal([]byte(payload), &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	intent.Normalize()
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &intent, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
