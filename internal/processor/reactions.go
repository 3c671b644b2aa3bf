package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/bailiff/internal/slack"
	"github.com/MikeSquared-Agency/bailiff/internal/store"
)

// HandleReaction processes Slack reactions on attention messages, forwarded
// by slack-forwarder via NATS.
func (p *Processor) HandleReaction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := slack.ParseReactionEvent(data, p.logger)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}

	action := slack.ParseReaction(evt.Reaction)
	if action == slack.ActionUnknown {
		return
	}

	p.mu.Lock()
	t, ok := p.pending[evt.MessageTS]
	p.mu.Unlock()
	if !ok {
		return // not one of ours, or already handled
	}

	p.logger.Info("attention reaction",
		"action", action,
		"user", evt.UserID,
		"notice_id", t.noticeID,
	)

	switch action {
	case slack.ActionRetry:
		p.retryFromReaction(ctx, evt.MessageTS, t)
	case slack.ActionResolve:
		p.resolveFromReaction(ctx, evt.MessageTS, t, evt.UserID)
	}
}

func (p *Processor) retryFromReaction(ctx context.Context, ts string, t *tracked) {
	unlock := p.locks.Lock(t.notice.CaseKey())
	out := p.reconcile(ctx, t)
	unlock()

	msg := fmt.Sprintf("Retried: %s", out.Status)
	if out.NeedsAttention() {
		msg = fmt.Sprintf("Retried: %s (%s)", out.Status, reasonOf(out))
	} else {
		p.forget(ts)
	}
	p.reply(ctx, ts, msg)
}

func (p *Processor) resolveFromReaction(ctx context.Context, ts string, t *tracked, userID string) {
	if p.store != nil && t.noticeID != uuid.Nil {
		if err := p.store.ResolveAttention(ctx, t.noticeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("failed to resolve attention", "notice_id", t.noticeID, "error", err)
			return
		}
	}
	p.forget(ts)
	p.reply(ctx, ts, fmt.Sprintf("Marked resolved by <@%s>", userID))
}

func (p *Processor) forget(ts string) {
	p.mu.Lock()
	delete(p.pending, ts)
	p.mu.Unlock()
}

func (p *Processor) reply(ctx context.Context, ts, text string) {
	if p.poster == nil {
		return
	}
	if err := p.poster.PostThread(ctx, ts, text); err != nil {
		p.logger.Error("slack thread reply failed", "ts", ts, "error", err)
	}
}
