package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/config"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/history"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/translator"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/file"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/icron"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// WatchService periodically sweeps a drop directory for freshly extracted
// source JSON files and translates each one.
type WatchService struct {
	cfg             config.Config
	translator      translator.Translator
	counter         *token.Counter
	store           *history.Store
	cron            *cron.Cron
	lastTriggerTime time.Time
}

func NewWatchService(
	cfg config.Config,
	trans translator.Translator,
	counter *token.Counter,
	store *history.Store,
	c *cron.Cron,
) *WatchService {
	return &WatchService{
		cfg:        cfg,
		translator: trans,
		counter:    counter,
		store:      store,
		cron:       c,
	}
}

var singleflightGroup singleflight.Group

// Schedule registers the sweep on the cron schedule. Overlapping triggers
// collapse into one running sweep.
func (s *WatchService) Schedule(ctx context.Context) error {
	log.Info("Run WatchService")

	runFunc := func() {
		_, _, _ = singleflightGroup.Do("run", func() (any, error) {
			if err := s.run(ctx, s.cfg.Watch.WatchDir); err != nil {
				log.Error("Failed to run in dir %s: %v", s.cfg.Watch.WatchDir, err)
			}
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.cfg.Watch.CronExpr, runFunc)
	return err
}

func (s *WatchService) run(ctx context.Context, dir string) error {
	targets, err := s.findSourceFiles(dir)
	if err != nil {
		return err
	}
	log.Info("Found %d source files in dir %s", len(targets), dir)

	triggeredAt := time.Now()
	for _, path := range targets {
		if err := ctx.Err(); err != nil {
			return WrapError(err, ErrStopped, "watch sweep stopped")
		}

		log.Info("Translating %s from %s to %s", path, s.cfg.Translate.SrcLang, s.cfg.Translate.DstLang)

		docTranslator, err := NewDocumentTranslator(Options{
			InputPath:            path,
			SrcLang:              s.cfg.Translate.SrcLang,
			DstLang:              s.cfg.Translate.DstLang,
			MaxToken:             s.cfg.Translate.MaxToken,
			SplitTokenLimit:      s.cfg.Translate.SplitTokenLimit,
			MaxRetries:           s.cfg.Translate.MaxRetries,
			ThreadCount:          s.cfg.Translate.ThreadCount,
			ContinueMode:         s.cfg.Translate.ContinueMode,
			EchoFirstAttemptPass: s.cfg.Translate.EchoFirstAttemptPass,
			GlossaryPath:         s.cfg.Translate.GlossaryPath,
			TempDir:              s.cfg.Dirs.TempDir,
			ResultDir:            s.cfg.Dirs.ResultDir,
			Model:                s.cfg.LLM.Model,
		}, s.translator, s.counter, s.store)
		if err != nil {
			log.Error("Failed to create translator for %s: %v", path, err)
			continue
		}

		outputPath, missing, err := docTranslator.Process(ctx)
		if err != nil {
			log.Error("Failed to translate %s: %v", path, err)
			continue
		}
		if len(missing) > 0 {
			log.Warn("Translated %s with %d untranslated units", path, len(missing))
		}
		log.Info("Translated %s -> %s", path, outputPath)
	}

	s.lastTriggerTime = triggeredAt
	return nil
}

// findSourceFiles locates extracted JSON files modified since the previous
// sweep window.
func (s *WatchService) findSourceFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory %s does not exist", dir)
	}

	startTime, err := s.startTime()
	if err != nil {
		return nil, fmt.Errorf("failed to get start time: %w", err)
	}
	log.Info("Searching for source files modified after %v", startTime)

	recentFiles, err := file.FindRecentAfter(dir, startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent files: %w", err)
	}

	targets := make([]string, 0, len(recentFiles))
	for _, filePath := range recentFiles {
		if strings.EqualFold(filepath.Ext(filePath), ".json") {
			targets = append(targets, filePath)
		}
	}
	return targets, nil
}

// startTime derives the sweep window start from the cron schedule on the
// first run, then from the previous trigger.
func (s *WatchService) startTime() (time.Time, error) {
	if s.lastTriggerTime.IsZero() {
		cronSchedule, err := icron.GetTriggerInfo(s.cfg.Watch.CronExpr, time.Now())
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
		}

		if time.Now().Add(-24 * 1 * time.Hour).Before(cronSchedule.Last) {
			return time.Now().Add(-24 * 7 * time.Hour), nil
		}
		return cronSchedule.Last, nil
	}

	return s.lastTriggerTime, nil
}
