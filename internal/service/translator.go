package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/checker"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/dedup"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/glossary"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/history"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/ledger"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/prompt"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/restore"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/segment"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/splitter"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/translator"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/file"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// ProgressFunc receives rate-limited progress updates during a run.
type ProgressFunc func(progress float64, desc string)

// Options configures one DocumentTranslator run.
type Options struct {
	// InputPath is the extracted source JSON produced by a format extractor.
	InputPath string

	SrcLang              string
	DstLang              string
	MaxToken             int
	SplitTokenLimit      int
	MaxRetries           int
	ThreadCount          int
	ContinueMode         bool
	EchoFirstAttemptPass bool
	GlossaryPath         string
	TempDir              string
	ResultDir            string
	Model                string

	// RetryCeiling overrides the per-segment wall-clock retry limit.
	// Zero means the default of one hour.
	RetryCeiling time.Duration

	Progress ProgressFunc
}

// DocumentTranslator runs the full pipeline for one document: dedup, split,
// segment, concurrent translation with retry rounds, validation, restore.
type DocumentTranslator struct {
	opts       Options
	translator translator.Translator
	counter    *token.Counter
	splitter   *splitter.Splitter
	store      *history.Store

	fileDir  string
	fileName string

	srcPath        string
	dedupedPath    string
	splitPath      string
	resultPath     string
	failedPath     string
	translatedPath string

	srcLang string
	prompts prompt.Set
	terms   []glossary.Term

	checker  *checker.Checker
	results  *ledger.ResultLedger
	failures *ledger.FailureLedger

	state        *RunState
	ioMu         sync.Mutex
	retryCeiling time.Duration

	translatedFailed bool
	srcToDeduped     map[int]int

	recordID  string
	startTime time.Time
}

// NewDocumentTranslator prepares a translator for one document. The history
// store is optional; nil disables run records.
func NewDocumentTranslator(opts Options, trans translator.Translator, counter *token.Counter, store *history.Store) (*DocumentTranslator, error) {
	if opts.InputPath == "" {
		return nil, NewError(ErrConfig, "input path is required")
	}
	if opts.MaxToken < 1 {
		return nil, NewError(ErrConfig, "max token must be greater than 0")
	}
	if opts.ThreadCount < 1 {
		opts.ThreadCount = 1
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.SplitTokenLimit < 1 {
		opts.SplitTokenLimit = splitter.DefaultSplitTokens
	}
	if opts.TempDir == "" {
		opts.TempDir = "temp"
	}

	fileName := strings.TrimSuffix(filepath.Base(opts.InputPath), filepath.Ext(opts.InputPath))
	fileDir := filepath.Join(opts.TempDir, fileName)

	retryCeiling := opts.RetryCeiling
	if retryCeiling <= 0 {
		retryCeiling = defaultRetryCeiling
	}

	t := &DocumentTranslator{
		opts:             opts,
		translator:       trans,
		counter:          counter,
		splitter:         splitter.New(counter),
		store:            store,
		fileDir:          fileDir,
		fileName:         fileName,
		srcPath:          filepath.Join(fileDir, unit.SrcFile),
		dedupedPath:      filepath.Join(fileDir, unit.DedupedFile),
		splitPath:        filepath.Join(fileDir, unit.SplitFile),
		resultPath:       filepath.Join(fileDir, unit.ResultFile),
		failedPath:       filepath.Join(fileDir, unit.FailedFile),
		translatedPath:   filepath.Join(fileDir, unit.TranslatedFile),
		srcLang:          opts.SrcLang,
		state:            NewRunState(),
		retryCeiling:     retryCeiling,
		translatedFailed: true,
	}
	t.results = ledger.NewResult(t.resultPath)
	t.failures = ledger.NewFailure(t.failedPath)

	return t, nil
}

// Process runs the pipeline. It returns the path of the translated JSON and
// the set of count_split values that ended up untranslated (filled with their
// original text in the output).
func (t *DocumentTranslator) Process(ctx context.Context) (string, map[int]bool, error) {
	t.startTime = time.Now()

	outputPath, missing, err := t.process(ctx)
	if err != nil {
		if IsErrorType(err, ErrStopped) {
			t.saveSummary(history.StatusStopped, outputPath)
		} else {
			t.saveSummary(history.StatusFailed, outputPath)
		}
		return "", nil, err
	}

	t.saveSummary(history.StatusSuccess, outputPath)
	return outputPath, missing, nil
}

func (t *DocumentTranslator) process(ctx context.Context) (string, map[int]bool, error) {
	if err := t.prepareWorkingFiles(ctx); err != nil {
		return "", nil, err
	}

	// Glossary and prompts need the resolved source language.
	t.prompts = prompt.Load(t.srcLang, t.opts.DstLang)
	if t.opts.GlossaryPath != "" {
		terms, err := glossary.Load(t.opts.GlossaryPath, t.srcLang, t.opts.DstLang)
		if err != nil {
			log.Warn("Failed to load glossary %s: %v", t.opts.GlossaryPath, err)
		} else {
			t.terms = terms
			log.Info("Loaded %d glossary terms", len(terms))
		}
	}

	t.checker = checker.New(t.srcLang, t.opts.DstLang, t.splitPath, t.results, t.failures, t.opts.EchoFirstAttemptPass)

	log.Info("Starting translation...")
	t.updateUI(0, "Translating content...")
	if err := t.translateContent(ctx); err != nil {
		return "", nil, err
	}

	retryCount := 0
	for retryCount < t.opts.MaxRetries && t.translatedFailed {
		lastTry := retryCount == t.opts.MaxRetries-1
		failed, err := t.retryFailedContent(ctx, retryCount, lastTry)
		if err != nil {
			return "", nil, err
		}
		t.translatedFailed = failed
		retryCount++
	}

	t.updateUI(0, "Checking results...")
	missing := checker.CheckAndSort(t.splitPath, t.resultPath)

	t.updateUI(0, "Restoring structure...")
	log.Info("Restoring translations...")
	if err := t.restoreTranslations(); err != nil {
		return "", nil, err
	}

	outputPath, err := t.publishResult()
	if err != nil {
		return "", nil, err
	}

	t.updateUI(1.0, "Translation completed")
	return outputPath, missing, nil
}

// publishResult copies the translated JSON into the result directory, named
// after the input file. With no result directory the working file is the
// deliverable.
func (t *DocumentTranslator) publishResult() (string, error) {
	if t.opts.ResultDir == "" {
		return t.translatedPath, nil
	}

	if err := os.MkdirAll(t.opts.ResultDir, 0o755); err != nil {
		return "", WrapError(err, ErrFileWrite, "failed to create result directory")
	}

	outputName := filepath.Base(file.ReplaceExt(t.opts.InputPath, ".translated.json"))
	outputPath := filepath.Join(t.opts.ResultDir, outputName)

	data, err := os.ReadFile(t.translatedPath)
	if err != nil {
		return "", WrapError(err, ErrFileRead, "failed to read translated file")
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", WrapError(err, ErrFileWrite, "failed to write result file")
	}

	log.Info("Result written to %s", outputPath)
	return outputPath, nil
}

// prepareWorkingFiles sets up the per-document working directory. In continue
// mode existing artifacts are kept and only missing stages are redone; a
// fresh run starts from a clean directory.
func (t *DocumentTranslator) prepareWorkingFiles(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(err, ErrStopped, "translation stopped")
	}

	if t.opts.ContinueMode {
		log.Info("Continue mode: checking existing files...")
	} else {
		t.clearWorkingDir()
	}

	if err := os.MkdirAll(t.fileDir, 0o755); err != nil {
		return WrapError(err, ErrFileWrite, "failed to create working directory")
	}

	// Source stage
	if !t.opts.ContinueMode || !unit.Exists(t.srcPath) {
		if err := t.importSource(); err != nil {
			return err
		}
	}

	sources, err := unit.Load[unit.SourceUnit](t.srcPath)
	if err != nil {
		return WrapError(err, ErrFileRead, "failed to load source units")
	}
	if len(sources) == 0 {
		return NewError(ErrFileRead, "source file contains no units").WithContext("path", t.srcPath)
	}

	if strings.EqualFold(t.srcLang, "auto") || t.srcLang == "" {
		values := make([]string, 0, len(sources))
		for _, s := range sources {
			values = append(values, s.Value)
		}
		t.srcLang = checker.DetectSourceLang(values)
		log.Info("Detected source language: %s", t.srcLang)
	}

	// Dedup stage. The mapping is recomputed from the source file either way;
	// it is deterministic and never persisted.
	log.Info("Deduplicating content...")
	t.updateUI(0, "Removing duplicates...")
	deduped, mapping := dedup.Deduplicate(sources)
	t.srcToDeduped = mapping
	if !t.opts.ContinueMode || !unit.Exists(t.dedupedPath) {
		if err := unit.Save(t.dedupedPath, deduped); err != nil {
			return WrapError(err, ErrDedup, "failed to save deduplicated units")
		}
	}

	// Split stage
	if !t.opts.ContinueMode || !unit.Exists(t.splitPath) {
		log.Info("Splitting content...")
		t.updateUI(0, "Splitting text...")
		dedupedUnits, err := unit.Load[unit.DedupedUnit](t.dedupedPath)
		if err != nil {
			return WrapError(err, ErrFileRead, "failed to load deduplicated units")
		}
		splits := t.splitter.SplitUnits(dedupedUnits, t.opts.SplitTokenLimit)
		if err := unit.Save(t.splitPath, splits); err != nil {
			return WrapError(err, ErrSplit, "failed to save split units")
		}
	}

	if err := t.results.EnsureExists(); err != nil {
		return WrapError(err, ErrFileWrite, "failed to create result ledger")
	}

	if t.opts.ContinueMode {
		t.reportResumeProgress()
	}
	return nil
}

// importSource copies the extractor's JSON into the working directory.
func (t *DocumentTranslator) importSource() error {
	data, err := os.ReadFile(t.opts.InputPath)
	if err != nil {
		return WrapError(err, ErrFileNotFound, "failed to read input file").WithContext("path", t.opts.InputPath)
	}
	if err := os.WriteFile(t.srcPath, data, 0o644); err != nil {
		return WrapError(err, ErrFileWrite, "failed to stage source file")
	}
	return nil
}

func (t *DocumentTranslator) clearWorkingDir() {
	if _, err := os.Stat(t.fileDir); err == nil {
		log.Info("Clearing working directory...")
		if err := os.RemoveAll(t.fileDir); err != nil {
			log.Warn("Could not clear working directory: %v", err)
		}
	}
}

func (t *DocumentTranslator) reportResumeProgress() {
	splits := unit.LoadOrEmpty[unit.SplitUnit](t.splitPath)
	completed := len(t.results.Load())
	if len(splits) > 0 {
		progress := float64(completed) / float64(len(splits))
		log.Info("Continue mode: %d/%d units (%.1f%%)", completed, len(splits), progress*100)
		t.updateUI(progress, fmt.Sprintf("Continuing from %.1f%%...", progress*100))
	}
}

// translateContent runs the main pass over all pending segments.
func (t *DocumentTranslator) translateContent(ctx context.Context) error {
	splits, err := unit.Load[unit.SplitUnit](t.splitPath)
	if err != nil {
		return WrapError(err, ErrFileRead, "failed to load split units")
	}

	segmenter := segment.New(t.counter, t.splitter, t.terms)
	segments := segmenter.Build(segment.FromSplitUnits(splits), t.opts.MaxToken, t.prompts, t.opts.ContinueMode)

	if len(segments) == 0 {
		if !t.opts.ContinueMode {
			log.Warn("No segments were generated")
		}
		return nil
	}

	log.Info("Translating %d segments using %d threads...", len(segments), t.opts.ThreadCount)
	return t.runPool(ctx, segments, false, "Translating")
}

// retryFailedContent re-runs everything in the failure ledger. Returns true
// when failures remain afterwards.
func (t *DocumentTranslator) retryFailedContent(ctx context.Context, retryCount int, lastTry bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, WrapError(err, ErrStopped, "translation stopped")
	}

	log.Info("Retrying failed translations... %d/%d", retryCount+1, t.opts.MaxRetries)

	failed := t.failures.Load()
	if len(failed) == 0 {
		log.Info("No failed segments to retranslate")
		return false, nil
	}

	segmenter := segment.New(t.counter, t.splitter, t.terms)
	segments := segmenter.Build(segment.FromFailures(failed), t.opts.MaxToken, t.prompts, false)
	if len(segments) == 0 {
		log.Info("All text has been translated")
		return false, nil
	}

	if lastTry {
		log.Info("Last try: processing each line individually")
		segments = segment.Explode(segments, t.terms)
	}

	// The ledger restarts empty so this round's outcomes fully replace it.
	t.ioMu.Lock()
	err := t.failures.Clear()
	t.ioMu.Unlock()
	if err != nil {
		return true, WrapError(err, ErrFileWrite, "failed to clear failure ledger")
	}

	desc := "Retrying translation"
	if lastTry {
		desc = "Final translation attempt"
	}
	log.Info("%s: %d segments using %d threads...", desc, len(segments), t.opts.ThreadCount)

	if err := t.runPool(ctx, segments, lastTry, desc); err != nil {
		return true, err
	}

	t.ioMu.Lock()
	remaining := !t.failures.IsEmpty()
	t.ioMu.Unlock()
	return remaining, nil
}

// runPool processes segments concurrently with a bounded worker pool.
func (t *DocumentTranslator) runPool(ctx context.Context, segments []segment.Segment, lastTry bool, desc string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.ThreadCount)

	var completed int
	var progressMu sync.Mutex
	total := len(segments)

	for _, seg := range segments {
		seg := seg
		g.Go(func() error {
			_, err := t.processSegment(gctx, seg, lastTry)
			if err != nil {
				return err
			}

			progressMu.Lock()
			completed++
			p := float64(completed) / float64(total)
			progressMu.Unlock()

			log.Info("Progress: %.1f%%", p*100)
			t.updateUI(p, desc+"...")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// restoreTranslations reassembles per-source output and writes the final
// translated JSON.
func (t *DocumentTranslator) restoreTranslations() error {
	results := t.results.Load()
	sources, err := unit.Load[unit.SourceUnit](t.srcPath)
	if err != nil {
		return WrapError(err, ErrFileRead, "failed to load source units")
	}
	splits, err := unit.Load[unit.SplitUnit](t.splitPath)
	if err != nil {
		return WrapError(err, ErrFileRead, "failed to load split units")
	}

	translated := restore.Restore(results, t.srcToDeduped, sources, splits)
	if err := unit.Save(t.translatedPath, translated); err != nil {
		return WrapError(err, ErrRestore, "failed to save translated units")
	}
	return nil
}

// saveSummary records the run outcome in the history store.
func (t *DocumentTranslator) saveSummary(status string, outputPath string) {
	if t.store == nil {
		return
	}

	usage := t.state.Usage()
	record := history.Record{
		ID:               t.recordID,
		FileName:         filepath.Base(t.opts.InputPath),
		OutputPath:       outputPath,
		Model:            t.opts.Model,
		SrcLang:          t.srcLang,
		DstLang:          t.opts.DstLang,
		Status:           status,
		StartTime:        t.startTime,
		EndTime:          time.Now(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}

	if err := t.store.Add(context.Background(), record); err != nil {
		log.Error("Failed to record translation history: %v", err)
	}
}

// updateUI forwards rate-limited progress to the configured callback.
func (t *DocumentTranslator) updateUI(progress float64, desc string) {
	if t.opts.Progress == nil {
		return
	}
	if !t.state.ShouldUpdateUI() && progress < 1.0 {
		return
	}
	t.opts.Progress(progress, desc)
}
