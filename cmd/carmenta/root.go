package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carmentacollective/carmenta-sub005/internal/config"
	"github.com/carmentacollective/carmenta-sub005/internal/logging"
	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/agent"
	"github.com/carmentacollective/carmenta-sub005/pkg/chat"
	"github.com/carmentacollective/carmenta-sub005/pkg/docstore"
	"github.com/carmentacollective/carmenta-sub005/pkg/entity"
	"github.com/carmentacollective/carmenta-sub005/pkg/extraction"
	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
	"github.com/carmentacollective/carmenta-sub005/pkg/profile"
	"github.com/carmentacollective/carmenta-sub005/pkg/retrieval"
)

var (
	configPath string
	userID     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "carmenta",
	Short: "Carmenta - a chat assistant with a persistent knowledge base",
	Long: `Carmenta stores conversations and a per-user knowledge base in SQLite,
retrieves relevant documents into each prompt, and recovers cleanly from
interrupted streams.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "owner id for all operations")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd, chatCmd, searchCmd, exportCmd, recoverCmd)
}

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *store.SQLiteStore
	chat    *chat.Service
	profile *profile.Service
	search  *retrieval.Service
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	st, err := store.NewSQLiteStoreWithDSN(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	client, err := buildClient(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	docs := docstore.New()
	if _, err := docs.Hydrate(userID, st); err != nil {
		log.Warn().Err(err).Msg("document snapshot hydrate failed")
	}

	prof := profile.NewService(st, log)
	ret := retrieval.NewService(st, cfg.Retrieval.MaxDocuments, log)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		profile: prof,
		search:  ret,
		chat: chat.NewService(
			st,
			ret,
			prof,
			entity.NewDetector(docs, log),
			agent.NewService(client, st, log),
			extraction.NewService(client, st, log),
			docs,
			log,
		),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close failed")
	}
}

func buildClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "openrouter":
		return llm.NewOpenRouter(cfg.LLM.OpenRouterAPIKey, cfg.LLM.OpenRouterModel), nil
	case "google":
		return llm.NewGoogle(cfg.LLM.GoogleAPIKey, cfg.LLM.GoogleModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
