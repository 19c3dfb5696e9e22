package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/config"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/history"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/prompt"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/service"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/translator"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "linguaharu",
		Short: "Document translation pipeline over LLM chat endpoints",
	}

	root.AddCommand(newTranslateCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newHistoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func newTranslateCmd() *cobra.Command {
	var (
		srcLang      string
		dstLang      string
		continueMode bool
	)

	cmd := &cobra.Command{
		Use:   "translate <source-json>",
		Short: "Translate one extracted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromEnv()
			if err != nil {
				return err
			}
			if srcLang != "" {
				cfg.Translate.SrcLang = srcLang
			}
			if dstLang != "" {
				cfg.Translate.DstLang = dstLang
			}
			if cmd.Flags().Changed("continue") {
				cfg.Translate.ContinueMode = continueMode
			}

			trans, counter, store, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			docTranslator, err := service.NewDocumentTranslator(service.Options{
				InputPath:            args[0],
				SrcLang:              cfg.Translate.SrcLang,
				DstLang:              cfg.Translate.DstLang,
				MaxToken:             cfg.Translate.MaxToken,
				SplitTokenLimit:      cfg.Translate.SplitTokenLimit,
				MaxRetries:           cfg.Translate.MaxRetries,
				ThreadCount:          cfg.Translate.ThreadCount,
				ContinueMode:         cfg.Translate.ContinueMode,
				EchoFirstAttemptPass: cfg.Translate.EchoFirstAttemptPass,
				GlossaryPath:         cfg.Translate.GlossaryPath,
				TempDir:              cfg.Dirs.TempDir,
				ResultDir:            cfg.Dirs.ResultDir,
				Model:                cfg.LLM.Model,
				Progress: func(progress float64, desc string) {
					log.Info("[%5.1f%%] %s", progress*100, desc)
				},
			}, trans, counter, store)
			if err != nil {
				return err
			}

			outputPath, missing, err := docTranslator.Process(cmd.Context())
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				log.Warn("%d units kept their original text", len(missing))
			}
			fmt.Println(outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&srcLang, "from", "", "Source language (overrides SRC_LANG)")
	cmd.Flags().StringVar(&dstLang, "into", "", "Target language (overrides DST_LANG)")
	cmd.Flags().BoolVar(&continueMode, "continue", false, "Resume from existing working files")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and translate new source files on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromEnv()
			if err != nil {
				return err
			}
			if cfg.Watch.WatchDir == "" {
				return fmt.Errorf("WATCH_DIR is required for watch mode")
			}

			trans, counter, store, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			c := cron.New()
			watchSvc := service.NewWatchService(*cfg, trans, counter, store, c)
			if err := watchSvc.Schedule(cmd.Context()); err != nil {
				return err
			}

			c.Start()
			defer c.Stop()

			<-cmd.Context().Done()
			log.Info("Shutting down watch service")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded translation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromEnv(func(c *config.Config) {
				// Listing history must not require an API key.
				if c.LLM.APIKey == "" {
					c.LLM.APIKey = "unused"
				}
			})
			if err != nil {
				return err
			}

			store, err := history.NewStore(cfg.Dirs.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No translation runs recorded")
				return nil
			}

			for _, r := range records {
				fmt.Printf("%s  %-8s  %s -> %s  %s  %s tokens  %s\n",
					r.StartTime.Local().Format("2006-01-02 15:04"),
					r.Status,
					r.SrcLang,
					r.DstLang,
					history.FormatDuration(r.DurationSeconds),
					history.FormatTokens(r.TotalTokens),
					r.FileName,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to show (0 = all)")
	return cmd
}

// buildPipeline wires the shared collaborators: LLM client, tokenizer and
// history store.
func buildPipeline(cfg *config.Config) (translator.Translator, *token.Counter, *history.Store, error) {
	client, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	counter, err := token.NewCounter()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	store, err := history.NewStore(cfg.Dirs.HistoryDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open history store: %w", err)
	}

	prompts := prompt.Load(cfg.Translate.SrcLang, cfg.Translate.DstLang)
	trans := translator.NewLLMTranslator(client, prompts)

	return trans, counter, store, nil
}
