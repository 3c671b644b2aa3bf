package slack

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// ReactionEvent is the structure received from slack-forwarder via NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// AttentionAction maps a Slack reaction on an attention item to an action.
type AttentionAction string

const (
	ActionRetry   AttentionAction = "retry"
	ActionResolve AttentionAction = "resolve"
	ActionUnknown AttentionAction = "unknown"
)

// ParseReaction converts a Slack reaction emoji name to an attention action.
func ParseReaction(reaction string) AttentionAction {
	switch reaction {
	case "repeat", "arrows_counterclockwise", "recycle":
		return ActionRetry
	case "white_check_mark", "heavy_check_mark", "ballot_box_with_check":
		return ActionResolve
	default:
		return ActionUnknown
	}
}

// ParseReactionEvent parses a NATS message payload from slack-forwarder into a ReactionEvent.
func ParseReactionEvent(data []byte, logger *slog.Logger) (*ReactionEvent, error) {
	// The slack-forwarder publishes events with metadata in a wrapper.
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  wrapper.Metadata["text"],
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}

	// Clean reaction text (remove colons if present)
	if len(evt.Reaction) > 2 && evt.Reaction[0] == ':' && evt.Reaction[len(evt.Reaction)-1] == ':' {
		evt.Reaction = evt.Reaction[1 : len(evt.Reaction)-1]
	}
	if evt.MessageTS == "" {
		logger.Debug("reaction without message_ts", "reaction", evt.Reaction)
	}

	return evt, nil
}
