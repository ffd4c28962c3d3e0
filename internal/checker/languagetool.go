package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ltResponse is the subset of the LanguageTool /v2/check response we use.
type ltResponse struct {
	Matches []ltMatch `json:"matches"`
}

type ltMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Category    struct {
			ID string `json:"id"`
		} `json:"category"`
	} `json:"rule"`
}

// decodeMatches parses a LanguageTool response for text and converts its
// offsets, counted in unit, into byte offsets. Matches whose offsets cannot
// be located in text make the whole response a protocol error.
func decodeMatches(text string, body []byte, unit Unit) ([]Finding, error) {
	var resp ltResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w (raw: %s)", ErrProtocol, err, truncate(string(body), 200))
	}

	cur := NewCursor(text, unit)
	findings := make([]Finding, 0, len(resp.Matches))
	for i, m := range resp.Matches {
		start, end, ok := cur.ToBytes(m.Offset, m.Length)
		if !ok || m.Length < 0 {
			return nil, fmt.Errorf("%w: match %d: offset %d+%d outside text", ErrProtocol, i, m.Offset, m.Length)
		}
		f := Finding{
			Start:           start,
			End:             end,
			RuleID:          m.Rule.ID,
			Category:        m.Rule.Category.ID,
			Message:         m.Message,
			RuleDescription: m.Rule.Description,
		}
		for _, r := range m.Replacements {
			f.Replacements = append(f.Replacements, r.Value)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// Remote calls a LanguageTool-compatible HTTP server.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	stats      *Stats
}

func NewRemote(baseURL string, timeout time.Duration, stats *Stats) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		stats: stats,
	}
}

// Check posts text to /v2/check.
func (c *Remote) Check(ctx context.Context, text string, opts Options) ([]Finding, error) {
	form := url.Values{}
	form.Set("text", text)
	lang := opts.Locale
	if lang == "" {
		lang = "auto"
	}
	form.Set("language", lang)
	if len(opts.EnabledCategories) > 0 {
		form.Set("enabledCategories", strings.Join(opts.EnabledCategories, ","))
	}
	if len(opts.DisabledRules) > 0 {
		form.Set("disabledRules", strings.Join(opts.DisabledRules, ","))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/check", bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: languagetool: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: languagetool status %d: %s", ErrProtocol, resp.StatusCode, truncate(string(respBody), 200))
	}

	// Only answered requests count as latency samples; failures are
	// recorded by the caller.
	if c.stats != nil {
		c.stats.Record(time.Since(start).Milliseconds())
	}
	return decodeMatches(text, respBody, UnitUTF16)
}

// Close releases resources.
func (c *Remote) Close() {
	c.httpClient.CloseIdleConnections()
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
