package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/rv/internal/models"
)

// Client implements Analyzer against the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an analysis client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Analyze sends one file plus its directive to the API and parses the
// returned JSON array of candidate issues.
func (c *Client) Analyze(ctx context.Context, filePath, content, directive string) ([]CandidateIssue, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\n\n", filePath)
	sb.WriteString("```\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: directive},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("%w: no text content in API response", ErrMalformed)
	}

	return parseCandidates(text)
}

// parseCandidates parses the model output into candidate issues, tolerating
// markdown fencing around the JSON array.
func parseCandidates(text string) ([]CandidateIssue, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var candidates []CandidateIssue
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, fmt.Errorf("%w: parse response as JSON: %v", ErrMalformed, err)
	}

	for i := range candidates {
		normalize(&candidates[i])
	}
	return candidates, nil
}

// normalize clamps out-of-enumeration values so the ledger only ever holds
// known severities and categories.
func normalize(c *CandidateIssue) {
	switch c.Severity {
	case models.SeverityError, models.SeverityWarning, models.SeverityInfo:
	default:
		c.Severity = models.SeverityInfo
	}
	switch c.Category {
	case models.CategorySecurity, models.CategoryArchitecture, models.CategoryLinting,
		models.CategoryTesting, models.CategoryPerformance, models.CategoryDocumentation:
	default:
		c.Category = models.CategoryLinting
	}
	if c.RuleID == "" {
		c.RuleID = "GENERAL"
	}
}

// CheckAvailability reports whether the API is reachable. Fails closed.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	_, err := c.api.Models.List(ctx, anthropic.ModelListParams{})
	return err == nil
}

// CheckModelAvailability reports whether the configured model exists. Fails closed.
func (c *Client) CheckModelAvailability(ctx context.Context, model string) bool {
	if model == "" {
		model = string(c.model)
	}
	_, err := c.api.Models.Get(ctx, model, anthropic.ModelGetParams{})
	return err == nil
}
