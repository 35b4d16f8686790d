package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/learner"
)

// DefaultMinMessages is how long a conversation without a booking link must
// be before it is worth learning from.
const DefaultMinMessages = 6

// Config holds the backfill command configuration.
type Config struct {
	Dir         string
	SingleFile  string // process a single file only
	StatePath   string
	Since       time.Time
	Until       time.Time
	DryRun      bool
	MinMessages int
	BatchSize   int           // save state and post a summary every BatchSize learned conversations
	BatchPause  time.Duration // pause between batches
}

// Learner folds a finished conversation into the strategy.
type Learner interface {
	Learn(ctx context.Context, o learner.Outcome) (analyzer.Features, error)
}

// Notifier posts batch summaries.
type Notifier interface {
	PostText(ctx context.Context, text string) (string, error)
}

// Runner orchestrates the backfill process.
type Runner struct {
	cfg      Config
	learner  Learner
	notifier Notifier
	logger   *slog.Logger
}

type RunnerOption func(*Runner)

// WithNotifier posts a summary after each batch and at the end of the run.
func WithNotifier(n Notifier) RunnerOption { return func(r *Runner) { r.notifier = n } }

// NewRunner creates a backfill runner.
func NewRunner(cfg Config, l Learner, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = DefaultMinMessages
	}
	r := &Runner{
		cfg:     cfg,
		learner: l,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run learns from every eligible conversation in the configured files. In
// dry-run mode conversations are analyzed but neither learned nor recorded
// in the state file.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{DryRun: r.cfg.DryRun}

	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return sum, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return sum, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("files discovered", "files", len(files), "dry_run", r.cfg.DryRun)

	var fileSummaries []FileSummary
	inBatch := 0

	save := func() {
		if r.cfg.DryRun {
			return
		}
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save backfill state", "path", state.Path(), "error", err)
		}
	}

	for _, path := range files {
		if state.IsProcessed(path) {
			continue
		}

		convs, err := ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			sum.Errors++
			continue
		}

		fs := FileSummary{Path: path}
		sum.Files++

		for _, c := range convs {
			select {
			case <-ctx.Done():
				r.logger.Info("backfill interrupted, saving state")
				save()
				r.postBatchSummary(ctx, append(fileSummaries, fs))
				return sum, ctx.Err()
			default:
			}

			sum.Conversations++
			if fs.Date == "" && !c.EndedAt.IsZero() {
				fs.Date = c.EndedAt.UTC().Format("2006-01-02")
			}

			if !r.inDateRange(c) || !Eligible(c, r.cfg.MinMessages) {
				fs.Skipped++
				sum.Skipped++
				state.ConversationsSkipped++
				continue
			}

			fp := Fingerprint(c)
			if state.HasSeen(fp) {
				fs.Duplicates++
				sum.Duplicates++
				state.Duplicates++
				continue
			}

			turns := learner.TurnsFromMessages(c.Messages)
			linkShared, consultation := learner.DetectOutcome(turns)

			if r.cfg.DryRun {
				f := analyzer.Analyze(turns, linkShared, consultation)
				r.logger.Info("would learn conversation",
					"session_id", c.SessionID,
					"user_turns", f.UserTurnCount,
					"link_shared", f.LinkShared,
				)
				state.MarkSeen(fp)
				fs.Learned++
				sum.Learned++
				if linkShared {
					fs.LinksShared++
					sum.LinksShared++
				}
				continue
			}

			f, err := r.learner.Learn(ctx, learner.Outcome{
				SessionID:             c.SessionID,
				Turns:                 turns,
				LinkShared:            linkShared,
				ConsultationRequested: consultation,
			})
			if errors.Is(err, learner.ErrEmptyTranscript) {
				fs.Skipped++
				sum.Skipped++
				state.ConversationsSkipped++
				continue
			}
			if err != nil {
				r.logger.Error("learning failed", "session_id", c.SessionID, "error", err)
				state.AddError(fmt.Sprintf("learn %s: %v", c.SessionID, err))
				fs.Errors++
				sum.Errors++
				continue
			}

			state.MarkSeen(fp)
			state.ConversationsLearned++
			fs.Learned++
			sum.Learned++
			if f.LinkShared {
				fs.LinksShared++
				sum.LinksShared++
			}
			inBatch++

			if r.cfg.BatchSize > 0 && inBatch >= r.cfg.BatchSize {
				r.logger.Info("batch complete, saving state", "learned", sum.Learned)
				save()
				r.postBatchSummary(ctx, append(fileSummaries, fs))
				fileSummaries = nil
				fs = FileSummary{Path: path, Date: fs.Date}
				inBatch = 0

				if r.cfg.BatchPause > 0 {
					select {
					case <-ctx.Done():
						return sum, ctx.Err()
					case <-time.After(r.cfg.BatchPause):
					}
				}
			}
		}

		fileSummaries = append(fileSummaries, fs)
		if !r.cfg.DryRun {
			state.MarkProcessed(path)
		}
		save()
	}

	save()
	r.postBatchSummary(ctx, fileSummaries)

	r.logger.Info("backfill complete",
		"files", sum.Files,
		"conversations", sum.Conversations,
		"learned", sum.Learned,
		"skipped", sum.Skipped,
		"duplicates", sum.Duplicates,
		"errors", sum.Errors,
		"dry_run", r.cfg.DryRun,
	)
	return sum, nil
}

// Eligible reports whether a conversation is worth learning from: it shared
// a booking link or it ran for at least minMessages messages. Conversations
// without a single user message never are.
func Eligible(c Conversation, minMessages int) bool {
	if !hasUserMessages(c) {
		return false
	}
	linkShared, _ := learner.DetectOutcome(learner.TurnsFromMessages(c.Messages))
	return linkShared || len(c.Messages) >= minMessages
}

func hasUserMessages(c Conversation) bool {
	for _, m := range c.Messages {
		if m.Role == string(analyzer.RoleUser) && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}

// inDateRange checks the conversation end time against since/until. Undated
// conversations are always in range.
func (r *Runner) inDateRange(c Conversation) bool {
	if c.EndedAt.IsZero() {
		return true
	}
	if !r.cfg.Since.IsZero() && c.EndedAt.Before(r.cfg.Since) {
		return false
	}
	if !r.cfg.Until.IsZero() && c.EndedAt.After(r.cfg.Until) {
		return false
	}
	return true
}

// postBatchSummary posts a summary grouped by date, or logs it when no
// notifier is configured.
func (r *Runner) postBatchSummary(ctx context.Context, summaries []FileSummary) {
	if len(summaries) == 0 {
		return
	}

	text := FormatDailySummary(summaries)

	if r.notifier == nil {
		r.logger.Info("backfill batch summary", "summary", text)
		return
	}

	if _, err := r.notifier.PostText(ctx, text); err != nil {
		r.logger.Warn("failed to post batch summary, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatDailySummary formats file summaries grouped by date.
func FormatDailySummary(summaries []FileSummary) string {
	byDate := make(map[string][]FileSummary)
	for _, s := range summaries {
		date := s.Date
		if date == "" {
			date = "unknown"
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("*Backfill Batch Summary*\n")

	for _, date := range dates {
		files := byDate[date]
		learned, links := 0, 0
		for _, f := range files {
			learned += f.Learned
			links += f.LinksShared
		}
		fmt.Fprintf(&sb, "\n*%s* (%d files, %d learned, %d links shared)\n", date, len(files), learned, links)
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s: %d learned, %d skipped", filepath.Base(f.Path), f.Learned, f.Skipped)
			if f.Duplicates > 0 {
				fmt.Fprintf(&sb, ", %d duplicates", f.Duplicates)
			}
			if f.Errors > 0 {
				fmt.Fprintf(&sb, " (%d errors)", f.Errors)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("transcript dir not found: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking transcript dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}
