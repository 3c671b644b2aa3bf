package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/processor"
)

const statusError = "error"

// Config holds the backfill command configuration.
type Config struct {
	Dir       string
	StatePath string
	Since     time.Time // skip files modified before this
	DryRun    bool      // parse only, no store or calendar writes
	BatchSize int       // save state and post a summary every N files
	Pause     time.Duration
	Source    string // source label for persisted records (default: "backfill")
	Output    io.Writer
}

// Ingester runs one notice through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, raw, source string) (*processor.Result, error)
}

// Notifier receives batch summaries.
type Notifier interface {
	PostThread(ctx context.Context, threadTS, text string) error
}

// Runner replays a directory of notice text files through the pipeline,
// oldest first, so reschedules are applied in the order they were issued.
type Runner struct {
	cfg      Config
	ingester Ingester
	parser   *notice.Parser
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. notifier may be nil.
func NewRunner(cfg Config, ing Ingester, parser *notice.Parser, notifier Notifier, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return &Runner{
		cfg:      cfg,
		ingester: ing,
		parser:   parser,
		notifier: notifier,
		logger:   logger,
	}
}

// sourceLabel returns the source string to use for persisted records.
func (r *Runner) sourceLabel() string {
	if r.cfg.Source != "" {
		return r.cfg.Source
	}
	return "backfill"
}

// Run executes the backfill process.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	var todo []noticeFile
	for _, f := range files {
		if state.IsProcessed(f.path) {
			continue
		}
		todo = append(todo, f)
	}

	state.FilesRemaining = len(todo)
	r.logger.Info("files to process",
		"discovered", len(files),
		"remaining", len(todo),
		"dry_run", r.cfg.DryRun,
	)

	var summaries []FileSummary
	inBatch := 0

	for _, f := range todo {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			r.postBatchSummary(ctx, summaries)
			return ctx.Err()
		default:
		}

		fs := r.processFile(ctx, f.path)
		if fs.Status == statusError {
			state.AddError(fmt.Sprintf("%s: %s", f.path, fs.Reason))
		}
		summaries = append(summaries, fs)
		state.MarkProcessed(f.path, fs.Status)
		state.FilesRemaining--
		inBatch++

		if inBatch >= r.cfg.BatchSize {
			r.logger.Info("batch complete, saving state", "files_in_batch", inBatch)
			_ = state.Save()
			r.postBatchSummary(ctx, summaries)
			summaries = nil
			inBatch = 0

			if r.cfg.Pause > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.cfg.Pause):
				}
			}
		}
	}

	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
	}
	r.postBatchSummary(ctx, summaries)

	r.logger.Info("backfill complete",
		"files_processed", len(todo),
		"outcomes", state.Outcomes,
		"errors", len(state.Errors),
	)

	out := r.cfg.Output
	fmt.Fprintf(out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(out, "Files processed: %d\n", len(todo))
	for _, status := range sortedKeys(state.Outcomes) {
		fmt.Fprintf(out, "%s: %d\n", status, state.Outcomes[status])
	}
	fmt.Fprintf(out, "Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Fprintf(out, "Mode: DRY RUN (parse only)\n")
	}
	fmt.Fprintf(out, "State file: %s\n", state.Path())

	return nil
}

func (r *Runner) processFile(ctx context.Context, path string) FileSummary {
	fs := FileSummary{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		fs.Status, fs.Reason = statusError, err.Error()
		return fs
	}
	raw := string(data)

	if r.cfg.DryRun {
		n, err := r.parser.Parse(raw)
		if err != nil {
			fs.Status, fs.Reason = statusError, err.Error()
			return fs
		}
		fs.Applicant, fs.Status = n.ApplicantName, "parsed"
		if n.NeedsDateReview() {
			fs.Reason = n.DateIssue
		}
		return fs
	}

	res, err := r.ingester.Ingest(ctx, raw, r.sourceLabel())
	if err != nil {
		r.logger.Error("ingest failed", "path", path, "error", err)
		fs.Status, fs.Reason = statusError, err.Error()
		return fs
	}
	fs.Applicant = res.Notice.ApplicantName
	fs.Status = string(res.Outcome.Status)
	fs.Reason = res.Outcome.Reason

	r.logger.Info("notice file processed",
		"path", path,
		"applicant", fs.Applicant,
		"status", fs.Status,
	)
	return fs
}

// postBatchSummary posts a summary of backfill results to Slack.
// If Slack is not configured, it logs the summary instead.
func (r *Runner) postBatchSummary(ctx context.Context, summaries []FileSummary) {
	if len(summaries) == 0 {
		return
	}

	text := FormatBatchSummary(summaries)

	if r.notifier == nil {
		r.logger.Info("backfill batch summary (no Slack configured)",
			"summary", text,
		)
		return
	}

	if err := r.notifier.PostThread(ctx, "", text); err != nil {
		r.logger.Warn("failed to post batch summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatBatchSummary formats file summaries grouped by outcome.
func FormatBatchSummary(summaries []FileSummary) string {
	byStatus := make(map[string][]FileSummary)
	for _, s := range summaries {
		byStatus[s.Status] = append(byStatus[s.Status], s)
	}

	var sb strings.Builder
	sb.WriteString("*Backfill Batch Summary*\n")

	for _, status := range sortedKeys(byStatus) {
		files := byStatus[status]
		fmt.Fprintf(&sb, "\n*%s* (%d files)\n", status, len(files))
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s", filepath.Base(f.Path))
			if f.Applicant != "" {
				fmt.Fprintf(&sb, " [%s]", f.Applicant)
			}
			if f.Reason != "" {
				fmt.Fprintf(&sb, ": %s", f.Reason)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// discoverFiles lists *.txt notices under Dir, oldest first.
func (r *Runner) discoverFiles() ([]noticeFile, error) {
	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(dir + " is not a directory")
	}

	var files []noticeFile
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), ".txt") {
			return nil
		}
		if !r.cfg.Since.IsZero() && info.ModTime().Before(r.cfg.Since) {
			return nil
		}
		files = append(files, noticeFile{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].path < files[j].path
	})
	return files, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
