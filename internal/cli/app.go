package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"email-digest/internal/ai"
	"email-digest/internal/config"
	"email-digest/internal/eml"
	"email-digest/internal/gmail"
	"email-digest/internal/pipeline"
	"email-digest/internal/repository"
	"email-digest/internal/repository/memory"
	"email-digest/internal/repository/sqlstore"
	"email-digest/internal/retry"
	"email-digest/internal/service"
)

type repositories struct {
	threads  repository.ThreadRepository
	contacts repository.ContactRepository
	db       *sqlx.DB
}

func (r *repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// openRepositories uses the SQL store when DATABASE_URL is set and the
// in-memory store otherwise.
func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("Using in-memory repositories")
		return &repositories{
			threads:  memory.NewInMemoryThreadRepository(),
			contacts: memory.NewInMemoryContactRepository(),
		}, nil
	}

	db, err := sqlstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Using SQL repositories", "driver", db.DriverName())
	return &repositories{
		threads:  sqlstore.NewThreadRepository(db),
		contacts: sqlstore.NewContactRepository(db),
		db:       db,
	}, nil
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.ThreadSource, error) {
	switch cfg.MailSource {
	case config.SourceEML:
		return eml.NewSource(cfg.EMLDir, logger), nil
	case config.SourceGmail:
		client, err := gmail.NewGmailClient(ctx, cfg.GmailTokenFile, cfg.GmailCredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported mail source %q", cfg.MailSource)
	}
}

func newAIClient(cfg *config.Config, logger *slog.Logger) *ai.Client {
	return ai.NewAIClient(ai.Options{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIKey,
		Model:    cfg.AIModel,
	}, logger)
}

func retryPolicy(cfg *config.Config) retry.Policy {
	policy := retry.DefaultPolicy
	policy.Attempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	return policy
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval(),
		MaxBatch:     cfg.MaxThreads,
		QueueSize:    2 * cfg.WorkerCount,
		MaxPolls:     cfg.MaxPolls,
		Retry:        retryPolicy(cfg),
	}
}

func newEnricher(
	cfg *config.Config,
	client service.AIClient,
	repos *repositories,
	source service.ThreadSource,
	logger *slog.Logger,
) *service.Enricher {
	policy := retryPolicy(cfg)
	return service.NewEnricher(
		repos.threads,
		source,
		service.NewThreadSummarizer(client, cfg.SummaryChunkChars, policy, logger),
		service.NewThreadClassifier(client, policy, logger),
		service.NewContactService(client, client, repos.contacts, cfg.SignatureMaxChars, policy, logger),
		cfg.OperatorEmail,
		policy,
		logger,
	)
}
