package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/bailiff/internal/classifier"
	"github.com/MikeSquared-Agency/bailiff/internal/hermes"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/reconciler"
	"github.com/MikeSquared-Agency/bailiff/internal/slack"
	"github.com/MikeSquared-Agency/bailiff/internal/store"
)

const (
	retryBatch       = 50
	retryConcurrency = 4
)

// NoticeStore persists notices and their reconciliation history.
type NoticeStore interface {
	SaveNotice(ctx context.Context, source string, n *notice.HearingNotice, cls classifier.Result) (store.SavedNotice, error)
	SaveOutcome(ctx context.Context, noticeID uuid.UUID, mode reconciler.SearchMode, out reconciler.Outcome) (uuid.UUID, error)
	ListRetryable(ctx context.Context, limit int) ([]store.RetryCandidate, error)
	ResolveAttention(ctx context.Context, noticeID uuid.UUID) error
}

// Publisher sends events to the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// AttentionPoster surfaces outcomes that need a person.
type AttentionPoster interface {
	PostAttention(ctx context.Context, a slack.Attention) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Processor runs the notice pipeline: parse, classify, persist, reconcile
// against the calendar, then publish the outcome.
type Processor struct {
	parser         *notice.Parser
	reconciler     *reconciler.Reconciler
	store          NoticeStore
	publisher      Publisher
	poster         AttentionPoster
	gatewayTimeout time.Duration
	logger         *slog.Logger

	locks *keyedMutex

	mu      sync.Mutex
	seen    map[string]bool     // case keys, used when there is no store
	pending map[string]*tracked // attention messages keyed by Slack TS
	counts  map[reconciler.Status]int
}

// tracked is a notice that has been through the pipeline at least once.
type tracked struct {
	noticeID       uuid.UUID
	notice         *notice.HearingNotice
	classification classifier.Result
	mode           reconciler.SearchMode
}

// Result describes one pass of a notice through the pipeline.
type Result struct {
	NoticeID       uuid.UUID             `json:"notice_id"`
	Notice         *notice.HearingNotice `json:"notice"`
	Classification classifier.Result     `json:"classification"`
	SearchMode     reconciler.SearchMode `json:"search_mode"`
	Outcome        reconciler.Outcome    `json:"outcome"`
	Error          string                `json:"error,omitempty"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithStore persists notices and outcomes. Without a store, first-ingestion
// detection falls back to an in-process set of case keys.
func WithStore(s NoticeStore) Option {
	return func(p *Processor) { p.store = s }
}

func WithPublisher(pub Publisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

func WithAttentionPoster(ap AttentionPoster) Option {
	return func(p *Processor) { p.poster = ap }
}

// WithGatewayTimeout bounds each reconciliation. Zero disables the bound.
func WithGatewayTimeout(d time.Duration) Option {
	return func(p *Processor) { p.gatewayTimeout = d }
}

func New(parser *notice.Parser, rec *reconciler.Reconciler, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		parser:     parser,
		reconciler: rec,
		logger:     logger,
		locks:      newKeyedMutex(),
		seen:       make(map[string]bool),
		pending:    make(map[string]*tracked),
		counts:     make(map[reconciler.Status]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs raw notice text through the whole pipeline. Parse and storage
// failures are returned as errors; calendar problems are reported in the
// Outcome instead.
func (p *Processor) Ingest(ctx context.Context, raw, source string) (*Result, error) {
	n, err := p.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse notice: %w", err)
	}
	cls := classifier.Classify(raw)

	// Holding the case lock across the first-seen check and the calendar
	// mutation keeps two notices for one case from both creating events.
	unlock := p.locks.Lock(n.CaseKey())
	defer unlock()

	t := &tracked{notice: n, classification: cls, mode: reconciler.SearchWindowed}
	first, err := p.record(ctx, source, t)
	if err != nil {
		return nil, err
	}
	if first {
		t.mode = reconciler.SearchUnbounded
	}

	p.logger.Info("processing notice",
		"notice_id", t.noticeID,
		"applicant", n.ApplicantName,
		"case_numbers", n.CaseNumbers,
		"claim_type", cls.ExtractedInfo.ClaimType,
		"search_mode", t.mode.String(),
	)

	out := p.reconcile(ctx, t)
	if out.NeedsAttention() {
		p.raiseAttention(ctx, t, out)
	}
	return resultOf(t, out), nil
}

// HandleNoticeReceived is the NATS handler for legal.notice.received.
func (p *Processor) HandleNoticeReceived(subject string, data []byte) {
	var evt hermes.NoticeReceived
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse notice event", "subject", subject, "error", err)
		return
	}
	if evt.Text == "" {
		p.logger.Warn("notice event without text", "source", evt.Source)
		return
	}

	res, err := p.Ingest(context.Background(), evt.Text, evt.Source)
	if err != nil {
		p.logger.Error("notice ingestion failed", "source", evt.Source, "error", err)
		return
	}
	p.logger.Info("notice processed",
		"source", evt.Source,
		"notice_id", res.NoticeID,
		"status", res.Outcome.Status,
	)
}

// RetryFailed re-runs reconciliation for stored notices whose latest outcome
// failed. It returns how many of them now succeed.
func (p *Processor) RetryFailed(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, nil
	}
	candidates, err := p.store.ListRetryable(ctx, retryBatch)
	if err != nil {
		return 0, fmt.Errorf("list retryable: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var recovered atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retryConcurrency)
	for _, c := range candidates {
		if c.Notice == nil {
			continue
		}
		t := &tracked{noticeID: c.NoticeID, notice: c.Notice, mode: c.Mode}
		t.classification = classifier.Classify(c.Notice.RawText)
		g.Go(func() error {
			unlock := p.locks.Lock(t.notice.CaseKey())
			defer unlock()

			out := p.reconcile(gctx, t)
			if !out.Retryable() {
				recovered.Add(1)
			}
			p.followUp(gctx, t, out)
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("retry sweep finished",
		"candidates", len(candidates),
		"recovered", recovered.Load(),
	)
	return int(recovered.Load()), nil
}

// Stats returns outcome counts since start, plus the number of open
// attention threads.
func (p *Processor) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := map[string]int{"pending_attention": len(p.pending)}
	for status, n := range p.counts {
		stats[string(status)] = n
	}
	return stats
}

// Location returns the zone hearing dates are normalized into.
func (p *Processor) Location() *time.Location {
	return p.parser.Location()
}

// record persists the notice and reports whether its hearing is new.
func (p *Processor) record(ctx context.Context, source string, t *tracked) (bool, error) {
	if p.store == nil {
		key := t.notice.CaseKey()
		p.mu.Lock()
		defer p.mu.Unlock()
		first := !p.seen[key]
		p.seen[key] = true
		return first, nil
	}

	saved, err := p.store.SaveNotice(ctx, source, t.notice, t.classification)
	if err != nil {
		return false, fmt.Errorf("save notice: %w", err)
	}
	t.noticeID = saved.ID
	return saved.First, nil
}

// reconcile runs one calendar pass, then records and announces the outcome.
// Callers hold the case lock.
func (p *Processor) reconcile(ctx context.Context, t *tracked) reconciler.Outcome {
	rctx := ctx
	if p.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, p.gatewayTimeout)
		defer cancel()
	}
	out := p.reconciler.Reconcile(rctx, t.notice, t.mode)

	p.mu.Lock()
	p.counts[out.Status]++
	p.mu.Unlock()

	if p.store != nil && t.noticeID != uuid.Nil {
		if _, err := p.store.SaveOutcome(ctx, t.noticeID, t.mode, out); err != nil {
			p.logger.Error("failed to save outcome", "notice_id", t.noticeID, "error", err)
		}
	}

	p.publish(hermes.SubjectHearingReconciled, reconciledEvent(t, out))

	p.logger.Info("notice reconciled",
		"notice_id", t.noticeID,
		"applicant", t.notice.ApplicantName,
		"status", out.Status,
		"reason", out.Reason,
	)
	return out
}

func (p *Processor) raiseAttention(ctx context.Context, t *tracked, out reconciler.Outcome) {
	p.publish(hermes.SubjectHearingAttention, hermes.AttentionRaised{
		NoticeID:    idString(t.noticeID),
		Applicant:   t.notice.ApplicantName,
		CaseNumbers: t.notice.CaseNumbers,
		Status:      string(out.Status),
		Reason:      reasonOf(out),
		Retryable:   out.Retryable(),
	})

	if p.poster == nil {
		return
	}
	ts, err := p.poster.PostAttention(ctx, slack.Attention{
		NoticeID:    idString(t.noticeID),
		Applicant:   t.notice.ApplicantName,
		CaseNumbers: t.notice.CaseNumbers,
		HearingDate: t.notice.HearingDate,
		DateRaw:     t.notice.DateRaw,
		Status:      string(out.Status),
		Reason:      reasonOf(out),
		Retryable:   out.Retryable(),
	})
	if err != nil {
		p.logger.Error("slack attention post failed", "notice_id", t.noticeID, "error", err)
		return
	}

	p.mu.Lock()
	p.pending[ts] = t
	p.mu.Unlock()
}

// followUp replies on an open attention thread for the same notice once a
// retry resolves it.
func (p *Processor) followUp(ctx context.Context, t *tracked, out reconciler.Outcome) {
	if out.NeedsAttention() || p.poster == nil {
		return
	}

	p.mu.Lock()
	var threads []string
	for ts, pt := range p.pending {
		if sameNotice(pt, t) {
			threads = append(threads, ts)
			delete(p.pending, ts)
		}
	}
	p.mu.Unlock()

	for _, ts := range threads {
		msg := fmt.Sprintf("Resolved on retry: %s", out.Status)
		if err := p.poster.PostThread(ctx, ts, msg); err != nil {
			p.logger.Error("slack thread reply failed", "ts", ts, "error", err)
		}
	}
}

func (p *Processor) publish(subject string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish", "subject", subject, "error", err)
	}
}

func reconciledEvent(t *tracked, out reconciler.Outcome) hermes.HearingReconciled {
	evt := hermes.HearingReconciled{
		NoticeID:    idString(t.noticeID),
		Applicant:   t.notice.ApplicantName,
		CaseNumbers: t.notice.CaseNumbers,
		HearingDate: t.notice.HearingDate,
		Status:      string(out.Status),
		SearchMode:  t.mode.String(),
		ClaimType:   t.classification.ExtractedInfo.ClaimType,
		Reason:      reasonOf(out),
	}
	if out.Event != nil {
		evt.EventID = out.Event.ID
	}
	return evt
}

func resultOf(t *tracked, out reconciler.Outcome) *Result {
	res := &Result{
		NoticeID:       t.noticeID,
		Notice:         t.notice,
		Classification: t.classification,
		SearchMode:     t.mode,
		Outcome:        out,
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res
}

func reasonOf(out reconciler.Outcome) string {
	if out.Reason != "" {
		return out.Reason
	}
	if out.Err != nil {
		return out.Err.Error()
	}
	return ""
}

func sameNotice(a, b *tracked) bool {
	if a.noticeID != uuid.Nil || b.noticeID != uuid.Nil {
		return a.noticeID == b.noticeID
	}
	return a.notice.CaseKey() == b.notice.CaseKey()
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
