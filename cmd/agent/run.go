package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/aicq-agent/internal/agent"
	"github.com/eldtechnologies/aicq-agent/internal/api"
	"github.com/eldtechnologies/aicq-agent/internal/api/middleware"
	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/config"
	"github.com/eldtechnologies/aicq-agent/internal/continuity"
	"github.com/eldtechnologies/aicq-agent/internal/crypto"
	"github.com/eldtechnologies/aicq-agent/internal/decision"
	"github.com/eldtechnologies/aicq-agent/internal/handlers"
	"github.com/eldtechnologies/aicq-agent/internal/interest"
	"github.com/eldtechnologies/aicq-agent/internal/llm"
	"github.com/eldtechnologies/aicq-agent/internal/models"
	"github.com/eldtechnologies/aicq-agent/internal/store"
	"github.com/eldtechnologies/aicq-agent/internal/team"
	"github.com/eldtechnologies/aicq-agent/internal/transport/aicq"
)

const (
	sweepInterval     = time.Minute
	eventsPerMinute   = 120
	shutdownTimeout   = 30 * time.Second
	dispatchQueueSize = 64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll AICQ and answer messages",
	Long: `Starts the agent: polls the character's rooms and private inbox, accepts
signed events on POST /events, and replies when the decision engine says so.
Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	character, err := config.LoadCharacter(cfg.CharacterFile, logger)
	if err != nil {
		return err
	}
	logger = logger.With().Str("agent_id", character.ID).Logger()

	creds, err := aicq.LoadCredentials(credentialsDir())
	if err != nil {
		return err
	}
	if !team.SameID(creds.AgentID, character.ID) {
		logger.Warn().Str("credentials_id", creds.AgentID).Msg("character id differs from the AICQ identity")
	}
	client := aicq.NewClient(cfg.AICQURL, creds)

	memory, err := store.Open(ctx, store.Options{
		Backend:     cfg.MemoryBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer memory.Close()
	logger.Info().Str("backend", cmp.Or(cfg.MemoryBackend, store.BackendRedis)).Msg("connected to memory log")

	genai, err := llm.NewModels(ctx, cfg.GenAIAPIKey)
	if err != nil {
		return err
	}
	model := cmp.Or(cfg.GenAIModel, llm.DefaultModel)
	persona := llm.Persona{Name: character.Name, Handle: character.Handle, Bio: character.Bio, Style: character.Style}

	var similarity continuity.Similarity
	if cfg.GenAIEmbeddingModel != "" {
		similarity = llm.NewEmbeddingSimilarity(genai, cfg.GenAIEmbeddingModel)
	}

	clk := clock.Real()
	scorer := continuity.NewScorer(similarity, character.ContinuityWindow, clk)

	registry := team.NewRegistry(client, logger)
	registry.Set(character.ID, character.Handle)
	teamCfg := character.TeamConfig()
	if teamCfg.Enabled {
		if err := registry.Refresh(ctx, teamCfg.MemberIDs); err != nil {
			logger.Warn().Err(err).Msg("some team handles could not be resolved")
		}
	}
	arbiter := team.NewArbiter(teamCfg, team.Deps{
		Registry: registry,
		Scorer:   scorer,
		Log:      memory,
		Clock:    clk,
		Logger:   logger,
	})

	interests := interest.NewStore(character.Interest, clk)
	engine := decision.NewEngine(decision.Config{
		SelfID:              character.ID,
		SelfName:            character.Name,
		SelfHandle:          character.Handle,
		MentionsOnly:        character.MentionsOnly,
		CadenceCap:          character.Decision.CadenceCap,
		ChatHistoryCount:    character.Decision.ChatHistoryCount,
		SimilarityThreshold: character.SimilarityThreshold,
		ConversationLength:  character.Decision.ConversationLength,
	}, decision.Deps{
		Store:   interests,
		Arbiter: arbiter,
		Scorer:  scorer,
		Voter:   llm.NewVoter(genai, model, persona, logger),
		History: memory,
		Logger:  logger,
	})

	a := agent.New(agent.Config{
		SelfID:               character.ID,
		SelfName:             character.Name,
		SelfHandle:           character.Handle,
		MentionsOnly:         character.MentionsOnly,
		IgnoreBotMessages:    character.IgnoreBotMessages,
		IgnoreDirectMessages: character.IgnoreDirectMessages,
		MaxMessageLength:     cfg.MaxMessageLength,
		ConversationLength:   character.Decision.ConversationLength,
		RecentMessageCount:   character.Team.RecentMessageCount,
	}, agent.Deps{
		Store:     interests,
		Arbiter:   arbiter,
		Engine:    engine,
		Log:       memory,
		Generator: llm.NewGenerator(genai, model, persona),
		Sender:    aicq.NewSender(client),
		Clock:     clk,
		Logger:    logger,
	})

	keys, err := crypto.NewKeyring(cfg.WebhookPublicKeys)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	dispatcher := agent.NewDispatcher(gctx, a.HandleIncomingMessage, dispatchQueueSize, logger)
	defer dispatcher.Wait()

	rooms := character.Rooms
	if len(rooms) == 0 {
		rooms = []string{aicq.GlobalRoom}
	}
	poller := aicq.NewPoller(client, aicq.PollerConfig{
		Rooms:       rooms,
		Interval:    cfg.PollInterval,
		PollPrivate: !character.IgnoreDirectMessages,
	}, func(ev models.Event) { dispatcher.Submit(ev) }, logger)

	router := api.NewRouter(logger, api.Deps{
		Handler: handlers.NewHandler(memory, dispatcher, a),
		Auth:    middleware.NewAuthMiddleware(keys, nonceStore(memory), logger),
		Limiter: rateLimiter(memory),
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return a.RunSweeper(gctx, sweepInterval) })
	g.Go(func() error {
		err := config.Watch(gctx, cfg.CharacterFile, func(c *config.Character) {
			reloadTeam(gctx, registry, character, c)
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("character file is not watched")
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Strs("rooms", rooms).
			Bool("team", teamCfg.Enabled).
			Msg("starting agent")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down agent...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Msg("agent stopped")
	return err
}

// reloadTeam applies an edited character file. Member handles are
// resolved again; other changes take effect on restart.
func reloadTeam(ctx context.Context, registry *team.Registry, running, edited *config.Character) {
	if !team.SameID(running.ID, edited.ID) {
		logger.Warn().Str("new_id", edited.ID).Msg("character id changed, restart to apply")
		return
	}
	ids := edited.TeamConfig().MemberIDs
	if err := registry.Refresh(ctx, ids); err != nil {
		logger.Warn().Err(err).Msg("refreshing team handles")
		return
	}
	logger.Info().Int("members", len(ids)).Msg("team handles refreshed")
}

// nonceStore shares the Redis connection when Redis holds the log.
func nonceStore(memory store.MemoryLog) store.NonceStore {
	if rl, ok := memory.(*store.RedisLog); ok {
		return rl.Nonces()
	}
	return store.NewMemoryNonces()
}

func rateLimiter(memory store.MemoryLog) *middleware.RateLimiter {
	if rl, ok := memory.(*store.RedisLog); ok {
		return middleware.NewRateLimiter(rl.Client(), eventsPerMinute, time.Minute, logger)
	}
	return nil
}
