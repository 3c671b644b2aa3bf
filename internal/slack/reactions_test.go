package slack

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseReaction(t *testing.T) {
	tests := []struct {
		name     string
		reaction string
		want     AttentionAction
	}{
		{"repeat", "repeat", ActionRetry},
		{"arrows", "arrows_counterclockwise", ActionRetry},
		{"recycle", "recycle", ActionRetry},
		{"check", "white_check_mark", ActionResolve},
		{"heavy check", "heavy_check_mark", ActionResolve},
		{"ballot", "ballot_box_with_check", ActionResolve},
		{"thumbsup", "+1", ActionUnknown},
		{"empty", "", ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReaction(tt.reaction)
			if got != tt.want {
				t.Errorf("ParseReaction(%q) = %q, want %q", tt.reaction, got, tt.want)
			}
		})
	}
}

func TestParseReactionEvent(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		wantReac string
		wantUser string
		wantTS   string
	}{
		{
			name: "colons stripped",
			metadata: map[string]string{
				"text":       ":repeat:",
				"user_id":    "U123",
				"channel_id": "C456",
				"message_ts": "1234567890.123456",
			},
			wantReac: "repeat",
			wantUser: "U123",
			wantTS:   "1234567890.123456",
		},
		{
			name: "no colons",
			metadata: map[string]string{
				"text":       "white_check_mark",
				"user_id":    "U789",
				"channel_id": "C012",
				"message_ts": "9999999.000",
			},
			wantReac: "white_check_mark",
			wantUser: "U789",
			wantTS:   "9999999.000",
		},
		{
			name:     "missing ts",
			metadata: map[string]string{"text": ":recycle:"},
			wantReac: "recycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(map[string]any{
				"metadata": tt.metadata,
			})

			evt, err := ParseReactionEvent(payload, discardLogger())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if evt.Reaction != tt.wantReac {
				t.Errorf("Reaction = %q, want %q", evt.Reaction, tt.wantReac)
			}
			if evt.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", evt.UserID, tt.wantUser)
			}
			if evt.MessageTS != tt.wantTS {
				t.Errorf("MessageTS = %q, want %q", evt.MessageTS, tt.wantTS)
			}
		})
	}
}

func TestParseReactionEvent_InvalidJSON(t *testing.T) {
	_, err := ParseReactionEvent([]byte("not json"), discardLogger())
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}
