package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/crm"
	"github.com/sells-group/lead-qualifier/internal/dedup"
	"github.com/sells-group/lead-qualifier/internal/enrich"
	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/lifecycle"
	"github.com/sells-group/lead-qualifier/internal/notify"
	"github.com/sells-group/lead-qualifier/internal/payment"
	"github.com/sells-group/lead-qualifier/internal/revenue"
	"github.com/sells-group/lead-qualifier/internal/score"
	"github.com/sells-group/lead-qualifier/pkg/anthropic"
	"github.com/sells-group/lead-qualifier/pkg/hubspot"
	"github.com/sells-group/lead-qualifier/pkg/ollama"
	"github.com/sells-group/lead-qualifier/pkg/semrush"
	"github.com/sells-group/lead-qualifier/pkg/similarweb"
	"github.com/sells-group/lead-qualifier/pkg/slack"
	"github.com/sells-group/lead-qualifier/pkg/tavily"
	"github.com/sells-group/lead-qualifier/pkg/vies"
)

// qualifierEnv holds the fully wired pipeline for one process.
type qualifierEnv struct {
	store    dedup.Store
	crm      *crm.Adapter
	machine  *lifecycle.Machine
	scanner  *lifecycle.Scanner
	callback *notify.CallbackHandler
	ollama   ollama.Client
}

// Close releases held resources.
func (e *qualifierEnv) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("closing dedup store", zap.Error(err))
	}
}

// initStore opens the configured dedup backend.
func initStore(ctx context.Context) (dedup.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return dedup.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return dedup.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initQualifier sets up the dedup store, all API clients, the enrichment
// pipeline, and the lifecycle machine.
func initQualifier(ctx context.Context, mode string) (*qualifierEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	gate, err := dedup.NewGatekeeper(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load dedup store")
	}

	hubspotClient := hubspot.NewClient(cfg.HubSpot.Token, hubspot.WithBaseURL(cfg.HubSpot.BaseURL))
	slackClient := slack.NewClient(cfg.Slack.BotToken)
	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)
	viesClient := vies.NewClient(vies.WithBaseURL(cfg.Vies.BaseURL))
	tavilyClient := tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))
	semrushClient := semrush.NewClient(cfg.Semrush.Key, semrush.WithBaseURL(cfg.Semrush.BaseURL))
	similarwebClient := similarweb.NewClient(cfg.Similarweb.Key, similarweb.WithBaseURL(cfg.Similarweb.BaseURL))

	// Local model is optional. When disabled the fatturato tier simply skips
	// its last-resort extraction pass.
	var ollamaClient ollama.Client
	if cfg.Ollama.Enabled {
		ollamaClient = ollama.NewClient(ollama.WithBaseURL(cfg.Ollama.BaseURL))
		zap.L().Info("local extraction model enabled", zap.String("model", cfg.Ollama.Model))
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Enrich.UserAgent,
		Timeout:      30 * time.Second,
		MaxRetries:   2,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	tierSettings, err := revenue.LoadTierSettings(cfg.Revenue.TierConfigPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	threshold := cfg.Revenue.SimilarityThreshold
	if tierSettings.SimilarityThreshold > 0 {
		threshold = tierSettings.SimilarityThreshold
	}

	fatturatoOpts := []revenue.FatturatoOption{}
	if ollamaClient != nil {
		fatturatoOpts = append(fatturatoOpts, revenue.WithFatturatoLLM(ollamaClient, cfg.Ollama.Model))
	}
	chain := revenue.NewChain(
		viesClient,
		&revenue.Validator{Threshold: threshold},
		revenue.NewFatturatoItalia(httpFetcher, fatturatoOpts...),
		revenue.NewUfficioCamerale(httpFetcher, tavilyClient),
		revenue.NewRegistroAziende(httpFetcher, tavilyClient),
		revenue.NewAtoka(httpFetcher, tavilyClient),
	)
	if cfg.Revenue.TierTimeoutSecs > 0 {
		chain = chain.WithTierTimeout(time.Duration(cfg.Revenue.TierTimeoutSecs) * time.Second)
	}
	if len(tierSettings.Disabled) > 0 {
		chain.Disable(tierSettings.Disabled...)
		zap.L().Info("revenue tiers disabled by settings file",
			zap.Strings("tiers", tierSettings.Disabled),
		)
	}

	coordinator := enrich.NewCoordinator(
		chain,
		payment.NewDetector(httpFetcher),
		enrich.NewTrafficSource(semrushClient, similarwebClient, cfg.Semrush.Database, "IT"),
		enrich.NewTechScanner(httpFetcher),
	)
	if cfg.Enrich.TaskTimeoutSecs > 0 {
		coordinator = coordinator.WithFieldTimeout(time.Duration(cfg.Enrich.TaskTimeoutSecs) * time.Second)
	}

	adapter := crm.NewAdapter(hubspotClient, cfg.HubSpot)
	resolver := score.NewResolver(score.NewOnlineScorer(anthropicClient, cfg.Anthropic.Model))
	notifier := notify.NewNotifier(gate, slackClient, adapter, cfg.Slack.Channel, cfg.HubSpot.PortalID)

	machine := lifecycle.NewMachine(adapter, coordinator, resolver, notifier, cfg.Intake)

	return &qualifierEnv{
		store:    st,
		crm:      adapter,
		machine:  machine,
		scanner:  lifecycle.NewScanner(machine, cfg.Scan),
		callback: notify.NewCallbackHandler(adapter, slackClient, cfg.Slack.SigningSecret),
		ollama:   ollamaClient,
	}, nil
}
