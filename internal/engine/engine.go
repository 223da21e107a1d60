// Package engine orchestrates the alert pipeline: fetch, aggregate, match,
// enrich, deliver, persist.
package engine

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stealth-alerts/internal/aggregator"
	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/delivery"
	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/logging"
	"github.com/stealth-alerts/internal/rules"
	"github.com/stealth-alerts/internal/storage"
	"github.com/stealth-alerts/internal/types"
)

type tokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

type provider interface {
	FetchTransactions(ctx context.Context, token string, query config.AlertQuery) ([]types.TransactionRecord, error)
	FetchTopWallets(ctx context.Context, token string) ([]string, error)
	TraderURL(address string) string
}

type enricher interface {
	Enrich(ctx context.Context, authToken string, matches []*rules.Match)
}

type dispatcher interface {
	Deliver(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) []delivery.Result
	ReportError(ctx context.Context, subject string, err error)
	ReportInfo(ctx context.Context, text string)
}

type tokenRepository interface {
	Upsert(ctx context.Context, token *storage.TokenRecord) error
}

type deliveryRepository interface {
	Insert(ctx context.Context, rec *storage.DeliveryRecord) error
	GetByMessage(ctx context.Context, chatID int64, messageID int) (*storage.DeliveryRecord, error)
}

type transactionArchive interface {
	ArchiveTransactions(ctx context.Context, alertID int64, fetchedAt time.Time, txns []types.TransactionRecord) error
}

type walletSetStore interface {
	SetTopWallets(ctx context.Context, wallets []string) error
	GetTopWallets(ctx context.Context) ([]string, error)
}

type claimer interface {
	TryClaim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
}

// Engine runs alert definitions against upstream data and handles webhook
// push activity. Definitions run sequentially; one definition's failure is
// reported and never stops the others.
type Engine struct {
	defs       []config.AlertDefinition
	session    tokenSource
	provider   provider
	enricher   enricher
	dispatcher dispatcher
	tokens     tokenRepository
	deliveries deliveryRepository
	archive    transactionArchive
	wallets    walletSetStore
	claims     claimer
	dedupTTL   time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// Options carries the engine's collaborators. Archive may be nil.
type Options struct {
	Definitions []config.AlertDefinition
	Session     tokenSource
	Provider    provider
	Enricher    enricher
	Dispatcher  dispatcher
	Tokens      tokenRepository
	Deliveries  deliveryRepository
	Archive     transactionArchive
	Wallets     walletSetStore
	Claims      claimer
	DedupTTL    time.Duration
	Logger      *logging.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{
		defs:       opts.Definitions,
		session:    opts.Session,
		provider:   opts.Provider,
		enricher:   opts.Enricher,
		dispatcher: opts.Dispatcher,
		tokens:     opts.Tokens,
		deliveries: opts.Deliveries,
		archive:    opts.Archive,
		wallets:    opts.Wallets,
		claims:     opts.Claims,
		dedupTTL:   opts.DedupTTL,
		logger:     opts.Logger.WithField("component", "engine"),
		now:        time.Now,
	}
}

// refreshMarkup is the inline keyboard attached to every alert.
func refreshMarkup() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", "refresh"),
		),
	)
	return &markup
}

// RunAll executes every alert definition once. The auth token is resolved
// once per run. Per-definition failures are reported to the operator and do
// not abort the remaining definitions.
func (e *Engine) RunAll(ctx context.Context) error {
	token, err := e.session.GetValidToken(ctx)
	if err != nil {
		e.dispatcher.ReportError(ctx, "acquiring auth token", err)
		return err
	}

	for i := range e.defs {
		def := &e.defs[i]
		if err := e.runDefinition(ctx, token, def); err != nil {
			e.logger.WithError(err).WithField("alert", def.Name).Error("Alert run failed")
			e.dispatcher.ReportError(ctx, fmt.Sprintf("running alert %q", def.Name), err)
		}
	}
	return nil
}

func (e *Engine) runDefinition(ctx context.Context, token string, def *config.AlertDefinition) error {
	logger := e.logger.WithField("alert", def.Name)

	txns, err := e.provider.FetchTransactions(ctx, token, def.Query)
	if err != nil {
		return err
	}
	logger.WithField("count", len(txns)).Info("Fetched provider transactions")

	if e.archive != nil {
		if err := e.archive.ArchiveTransactions(ctx, def.ID, e.now(), txns); err != nil {
			logger.WithError(err).Warn("Transaction archive insert failed")
		}
	}

	window := time.Duration(def.Filter.WindowMinutes) * time.Minute
	result := aggregator.Aggregate(txns, window, def.ExclusionSet(), e.now())
	matches := rules.Evaluate(result, def)
	if len(matches) == 0 {
		logger.Debug("No matches this cycle")
		return nil
	}

	e.enricher.Enrich(ctx, token, matches)
	matches = rules.ApplyWalletQuality(matches, def)
	if len(matches) == 0 {
		logger.Info("All matches rejected by wallet quality filter")
		return nil
	}

	for _, match := range matches {
		e.deliverMatch(ctx, def, match)
	}
	return nil
}

func (e *Engine) deliverMatch(ctx context.Context, def *config.AlertDefinition, match *rules.Match) {
	agg := match.Aggregate
	logger := e.logger.WithFields(map[string]interface{}{
		"alert": def.Name,
		"token": agg.TokenAddress,
	})

	text := delivery.BuildAlertMessage(def, agg, e.provider.TraderURL)
	results := e.dispatcher.Deliver(ctx, text, refreshMarkup())

	e.persistToken(ctx, agg, logger)

	for _, res := range results {
		rec := &storage.DeliveryRecord{
			AlertID:      def.ID,
			TokenAddress: agg.TokenAddress,
			TokenSymbol:  agg.TokenSymbol,
			Transactions: agg.Transactions,
			Status:       storage.DeliveryStatusDelivered,
		}
		if res.Err != nil {
			rec.Status = storage.DeliveryStatusFailed
		} else {
			rec.MessageID = res.MessageID
			rec.ChatID = res.ChatID
		}
		if err := e.deliveries.Insert(ctx, rec); err != nil {
			logger.WithError(err).WithField("recipient", res.Recipient).Error("Failed to persist delivery record")
		}
	}
}

func (e *Engine) persistToken(ctx context.Context, agg *aggregator.TokenAggregate, logger *logging.Logger) {
	rec := &storage.TokenRecord{
		Address:          agg.TokenAddress,
		Name:             agg.TokenName,
		Symbol:           agg.TokenSymbol,
		ContractCreation: agg.CreatedAt,
	}
	if err := e.tokens.Upsert(ctx, rec); err != nil {
		logger.WithError(err).Error("Failed to persist token")
	}
}

// HandleActivity processes one push webhook delivery. The delivery id is
// claimed first; a repeat claim is rejected without side effects.
func (e *Engine) HandleActivity(ctx context.Context, payload *types.WebhookPayload) error {
	if payload.ID == "" {
		return errors.NewValidationError("webhook payload", "missing delivery id")
	}

	claimed, err := e.claims.TryClaim(ctx, payload.ID, e.dedupTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return errors.NewDuplicateWebhookError(payload.ID)
	}

	watched, err := e.wallets.GetTopWallets(ctx)
	if err != nil {
		return err
	}
	watchedSet := make(map[string]struct{}, len(watched))
	for _, w := range watched {
		watchedSet[types.NormalizeAddress(w)] = struct{}{}
	}

	txns := e.activityTransactions(payload.Event.Activity, watchedSet)
	if len(txns) == 0 {
		e.logger.WithField("delivery", payload.ID).Debug("No watched-wallet activity in delivery")
		return nil
	}

	token, err := e.session.GetValidToken(ctx)
	if err != nil {
		e.dispatcher.ReportError(ctx, "acquiring auth token", err)
		return err
	}

	for i := range e.defs {
		def := &e.defs[i]
		window := time.Duration(def.Filter.WindowMinutes) * time.Minute
		result := aggregator.Aggregate(txns, window, def.ExclusionSet(), e.now())
		matches := rules.Evaluate(result, def)
		if len(matches) == 0 {
			continue
		}

		e.enricher.Enrich(ctx, token, matches)
		matches = rules.ApplyWalletQuality(matches, def)

		for _, match := range matches {
			e.deliverMatch(ctx, def, match)
		}
	}
	return nil
}

// activityTransactions converts push activity into transaction records,
// keeping only token receipts by watched wallets.
func (e *Engine) activityTransactions(activity []types.ActivityEntry, watched map[string]struct{}) []types.TransactionRecord {
	now := types.FormatUTCTime(e.now())

	var txns []types.TransactionRecord
	for _, entry := range activity {
		if entry.RawContract.Address == "" {
			continue
		}
		buyer := types.NormalizeAddress(entry.ToAddress)
		if _, ok := watched[buyer]; !ok {
			continue
		}
		txns = append(txns, types.TransactionRecord{
			Time:          now,
			WalletAddress: buyer,
			TokenSymbol:   entry.Asset,
			TokenAddress:  types.NormalizeAddress(entry.RawContract.Address),
			Value:         entry.Value,
		})
	}
	return txns
}

// RefreshTopWallets refetches the provider's top-ROI wallets into the
// watched set.
func (e *Engine) RefreshTopWallets(ctx context.Context) (int, error) {
	token, err := e.session.GetValidToken(ctx)
	if err != nil {
		e.dispatcher.ReportError(ctx, "acquiring auth token", err)
		return 0, err
	}

	wallets, err := e.provider.FetchTopWallets(ctx, token)
	if err != nil {
		e.dispatcher.ReportError(ctx, "fetching top wallets", err)
		return 0, err
	}
	if len(wallets) == 0 {
		err := fmt.Errorf("provider returned no top wallets")
		e.dispatcher.ReportError(ctx, "fetching top wallets", err)
		return 0, err
	}

	if err := e.wallets.SetTopWallets(ctx, wallets); err != nil {
		e.dispatcher.ReportError(ctx, "storing top wallets", err)
		return 0, err
	}

	e.dispatcher.ReportInfo(ctx, fmt.Sprintf("👛 Refreshed top %d wallets", len(wallets)))
	return len(wallets), nil
}

// Refresh re-renders a delivered alert from its stored transaction snapshot,
// with fresh enrichment. Returns the new message text.
func (e *Engine) Refresh(ctx context.Context, chatID int64, messageID int) (string, error) {
	rec, err := e.deliveries.GetByMessage(ctx, chatID, messageID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", errors.NewValidationError("refresh", "message is not a tracked alert")
	}

	def := e.definitionByID(rec.AlertID)
	agg := aggregator.Rebuild(rec.TokenAddress, rec.TokenSymbol, rec.Transactions)
	match := &rules.Match{Definition: def, Aggregate: agg}

	token, err := e.session.GetValidToken(ctx)
	if err != nil {
		// Enrichment is best-effort on refresh; render without it.
		e.logger.WithError(err).Warn("Refreshing without enrichment, no auth token")
	} else {
		e.enricher.Enrich(ctx, token, []*rules.Match{match})
	}

	return delivery.BuildAlertMessage(def, agg, e.provider.TraderURL), nil
}

func (e *Engine) definitionByID(id int64) *config.AlertDefinition {
	for i := range e.defs {
		if e.defs[i].ID == id {
			return &e.defs[i]
		}
	}
	// Deliveries can outlive definition changes; fall back to the first
	// definition's rendering options.
	return &e.defs[0]
}
