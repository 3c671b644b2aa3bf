package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Attention is a notice outcome that a person needs to look at.
type Attention struct {
	NoticeID    string
	Applicant   string
	CaseNumbers []string
	HearingDate *time.Time
	DateRaw     string
	Status      string
	Reason      string
	Retryable   bool
}

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostAttention posts a needs-attention item to the channel.
// Returns the message timestamp (ts) which is used for tracking reactions.
func (p *Poster) PostAttention(ctx context.Context, a Attention) (string, error) {
	text := formatAttentionMessage(a)

	hint := "React: :white_check_mark: resolved"
	if a.Retryable {
		hint = "React: :repeat: retry now | :white_check_mark: resolved"
	}

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": hint,
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.logger.Info("posted attention item to slack", "ts", ts, "notice_id", a.NoticeID, "status", a.Status)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatAttentionMessage(a Attention) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Hearing needs attention:* %s\n", a.Applicant)
	if len(a.CaseNumbers) > 0 {
		fmt.Fprintf(&sb, "*Case numbers:* %s\n", strings.Join(a.CaseNumbers, ", "))
	}
	switch {
	case a.HearingDate != nil:
		fmt.Fprintf(&sb, "*Hearing date:* %s\n", a.HearingDate.Format("Mon Jan 2, 2006 3:04 PM MST"))
	case a.DateRaw != "":
		fmt.Fprintf(&sb, "*Hearing date:* %s _(could not be read, enter manually)_\n", a.DateRaw)
	}
	fmt.Fprintf(&sb, "*Outcome:* %s\n", a.Status)
	if a.Reason != "" {
		fmt.Fprintf(&sb, "*Reason:* %s\n", a.Reason)
	}
	if a.NoticeID != "" {
		fmt.Fprintf(&sb, "_Notice %s_", a.NoticeID)
	}

	return strings.TrimRight(sb.String(), "\n")
}
