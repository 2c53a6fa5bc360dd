package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/config"
	"github.com/zhouzirui/workshop-copilot/backend/internal/handler"
	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/agent"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/classifier"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/painpoint"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/question"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/rag"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/search"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	logging.Init(cfg.Log.Environment, cfg.Log.Level)
	log := logging.For("main")

	store, err := session.NewStore(cfg.Store.LogDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open session store")
	}

	// Ark chat model drives the planner, knowledge answers and the intent fallback.
	if !cfg.AI.Enabled() {
		log.Fatal("Ark 凭证未配置，智能体需要 ARK_API_KEY（或 AK/SK）与 Model")
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to create chat model")
	}

	assistant, err := buildAssistant(ctx, cfg, store, chatModel, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build assistant")
	}

	router := handler.NewRouter(assistant, store)
	startServer(ctx, cfg.Server, router, log)
}

func buildAssistant(ctx context.Context, cfg *config.Config, store *session.Store, chatModel model.ChatModel, log *logrus.Entry) (*agent.Router, error) {
	lexicon := classifier.NewLexicon()
	stages := painpoint.Stages{Sentiment: lexicon, Emotion: lexicon}

	var embedder embedding.Embedder
	if cfg.Classifier.Enabled() {
		hf, err := classifier.NewHFClient(classifier.HFConfig{
			BaseURL:        cfg.Classifier.BaseURL,
			APIToken:       cfg.Classifier.APIToken,
			SentimentModel: cfg.Classifier.SentimentModel,
			IntentModel:    cfg.Classifier.IntentModel,
			NERModel:       cfg.Classifier.NERModel,
			EmbedModel:     cfg.Classifier.EmbedModel,
		})
		if err != nil {
			return nil, fmt.Errorf("hugging face client: %w", err)
		}
		stages.Sentiment, stages.Intent, stages.Entities = hf, hf, hf
		embedder = hf
		log.Info("Hugging Face classifiers enabled")
	} else {
		intent, err := classifier.NewLLMIntentClassifier(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		stages.Intent = intent
		log.Warn("HF_API_TOKEN not set, using lexicon sentiment and LLM intent; NER and knowledge bases disabled")
	}

	recorder, err := painpoint.NewFileRecorder(cfg.Store.LogDir)
	if err != nil {
		return nil, err
	}

	hr, err := rag.Open(ctx, "HR", cfg.Retrieval.HRDir, embedder, chatModel, cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("hr knowledge base: %w", err)
	}
	strategy, err := rag.Open(ctx, "strategy", cfg.Retrieval.StrategyDir, embedder, chatModel, cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("strategy knowledge base: %w", err)
	}

	web, err := search.NewClient(cfg.Search.BaseURL, cfg.Search.CacheTTL, nil)
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry(tools.Backends{
		HR:         hr,
		Strategy:   strategy,
		Search:     web,
		Questions:  question.NewGenerator(store, cfg.Agent.QuestionStaleness),
		PainPoints: painpoint.NewChain(stages, recorder),
	}, cfg.Agent.ToolTimeout)
	if err != nil {
		return nil, err
	}

	var planner agent.Planner
	switch cfg.Agent.Planner {
	case "toolcall":
		planner, err = agent.NewToolCallingPlanner(chatModel, registry.ToolInfos())
	default:
		planner, err = agent.NewReActPlanner(ctx, chatModel)
	}
	if err != nil {
		return nil, fmt.Errorf("%s planner: %w", cfg.Agent.Planner, err)
	}
	log.WithField("planner", cfg.Agent.Planner).Info("agent planner ready")

	return agent.NewRouter(store, registry, planner, cfg.Agent.MaxSteps)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logrus.Entry) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Info("workshop copilot listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
