package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/delivery"
	apperrors "github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/logging"
	"github.com/stealth-alerts/internal/rules"
	"github.com/stealth-alerts/internal/storage"
	"github.com/stealth-alerts/internal/types"
)

type fakeSession struct {
	token string
	err   error
	calls int
}

func (f *fakeSession) GetValidToken(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeProvider struct {
	txns       []types.TransactionRecord
	txnErr     error
	topWallets []string
	topErr     error
	fetchCalls int
}

func (f *fakeProvider) FetchTransactions(ctx context.Context, token string, query config.AlertQuery) ([]types.TransactionRecord, error) {
	f.fetchCalls++
	return f.txns, f.txnErr
}

func (f *fakeProvider) FetchTopWallets(ctx context.Context, token string) ([]string, error) {
	return f.topWallets, f.topErr
}

func (f *fakeProvider) TraderURL(address string) string {
	return "https://example.com/trader?WA=" + address
}

type fakeEnricher struct {
	calls int
}

func (f *fakeEnricher) Enrich(ctx context.Context, authToken string, matches []*rules.Match) {
	f.calls++
}

type fakeDispatcher struct {
	delivered []string
	results   []delivery.Result
	errors    []string
	infos     []string
}

func (f *fakeDispatcher) Deliver(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) []delivery.Result {
	f.delivered = append(f.delivered, text)
	return f.results
}

func (f *fakeDispatcher) ReportError(ctx context.Context, subject string, err error) {
	f.errors = append(f.errors, subject)
}

func (f *fakeDispatcher) ReportInfo(ctx context.Context, text string) {
	f.infos = append(f.infos, text)
}

type fakeTokenRepo struct {
	upserts []*storage.TokenRecord
	err     error
}

func (f *fakeTokenRepo) Upsert(ctx context.Context, token *storage.TokenRecord) error {
	f.upserts = append(f.upserts, token)
	return f.err
}

type fakeDeliveryRepo struct {
	inserts []*storage.DeliveryRecord
	stored  *storage.DeliveryRecord
	getErr  error
}

func (f *fakeDeliveryRepo) Insert(ctx context.Context, rec *storage.DeliveryRecord) error {
	f.inserts = append(f.inserts, rec)
	return nil
}

func (f *fakeDeliveryRepo) GetByMessage(ctx context.Context, chatID int64, messageID int) (*storage.DeliveryRecord, error) {
	return f.stored, f.getErr
}

type fakeWalletStore struct {
	wallets []string
	setErr  error
	getErr  error
}

func (f *fakeWalletStore) SetTopWallets(ctx context.Context, wallets []string) error {
	f.wallets = wallets
	return f.setErr
}

func (f *fakeWalletStore) GetTopWallets(ctx context.Context) ([]string, error) {
	return f.wallets, f.getErr
}

type fakeClaimer struct {
	claimed map[string]bool
	err     error
}

func (f *fakeClaimer) TryClaim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[deliveryID] {
		return false, nil
	}
	f.claimed[deliveryID] = true
	return true, nil
}

func testDefinition(id int64) config.AlertDefinition {
	return config.AlertDefinition{
		ID:   id,
		Name: fmt.Sprintf("Alert %d", id),
		Query: config.AlertQuery{
			PageSize:    100,
			ValueFilter: 100,
		},
		Filter: config.AlertFilter{
			WindowMinutes:      5,
			MinDistinctWallets: 2,
		},
	}
}

func clusterTxns(now time.Time) []types.TransactionRecord {
	ts := types.FormatUTCTime(now.Add(-time.Minute))
	return []types.TransactionRecord{
		{Time: ts, WalletAddress: "0xaaa1", TokenSymbol: "PEPE", TokenAddress: "0xt0ken", BuyPrice: 0.5, Value: 1500},
		{Time: ts, WalletAddress: "0xbbb2", TokenSymbol: "PEPE", TokenAddress: "0xt0ken", BuyPrice: 0.5, Value: 2000},
		{Time: ts, WalletAddress: "0xccc3", TokenSymbol: "PEPE", TokenAddress: "0xt0ken", BuyPrice: 0.5, Value: 1000},
	}
}

type engineFixture struct {
	engine     *Engine
	session    *fakeSession
	provider   *fakeProvider
	enricher   *fakeEnricher
	dispatcher *fakeDispatcher
	tokens     *fakeTokenRepo
	deliveries *fakeDeliveryRepo
	wallets    *fakeWalletStore
	claims     *fakeClaimer
}

func newFixture(defs ...config.AlertDefinition) *engineFixture {
	f := &engineFixture{
		session:    &fakeSession{token: "tok-1"},
		provider:   &fakeProvider{},
		enricher:   &fakeEnricher{},
		dispatcher: &fakeDispatcher{results: []delivery.Result{{Recipient: 100, MessageID: 7, ChatID: 100}}},
		tokens:     &fakeTokenRepo{},
		deliveries: &fakeDeliveryRepo{},
		wallets:    &fakeWalletStore{},
		claims:     &fakeClaimer{},
	}
	f.engine = New(Options{
		Definitions: defs,
		Session:     f.session,
		Provider:    f.provider,
		Enricher:    f.enricher,
		Dispatcher:  f.dispatcher,
		Tokens:      f.tokens,
		Deliveries:  f.deliveries,
		Wallets:     f.wallets,
		Claims:      f.claims,
		DedupTTL:    time.Hour,
		Logger:      logging.NewLogger(logging.LevelError, logging.FormatText),
	})
	return f
}

func TestRunAllDeliversMatchedCluster(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.provider.txns = clusterTxns(time.Now().UTC())

	err := f.engine.RunAll(context.Background())
	require.NoError(t, err)

	require.Len(t, f.dispatcher.delivered, 1)
	assert.Contains(t, f.dispatcher.delivered[0], "PEPE")
	assert.Contains(t, f.dispatcher.delivered[0], "0xt0ken")

	require.Len(t, f.tokens.upserts, 1)
	assert.Equal(t, "0xt0ken", f.tokens.upserts[0].Address)

	require.Len(t, f.deliveries.inserts, 1)
	rec := f.deliveries.inserts[0]
	assert.Equal(t, int64(1), rec.AlertID)
	assert.Equal(t, storage.DeliveryStatusDelivered, rec.Status)
	assert.Equal(t, 7, rec.MessageID)
	assert.Len(t, rec.Transactions, 3)

	assert.Equal(t, 1, f.enricher.calls)
}

func TestRunAllNoMatchesNoDelivery(t *testing.T) {
	f := newFixture(testDefinition(1))
	now := time.Now().UTC()
	f.provider.txns = []types.TransactionRecord{
		{Time: types.FormatUTCTime(now), WalletAddress: "0xaaa1", TokenSymbol: "PEPE", TokenAddress: "0xt0ken", Value: 500},
	}

	require.NoError(t, f.engine.RunAll(context.Background()))
	assert.Empty(t, f.dispatcher.delivered)
	assert.Empty(t, f.deliveries.inserts)
	assert.Equal(t, 0, f.enricher.calls)
}

func TestRunAllTokenFailureAbortsRun(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.session.err = fmt.Errorf("login rejected")

	err := f.engine.RunAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, f.provider.fetchCalls)
	require.Len(t, f.dispatcher.errors, 1)
	assert.Contains(t, f.dispatcher.errors[0], "auth token")
}

func TestRunAllDefinitionFailureIsIsolated(t *testing.T) {
	f := newFixture(testDefinition(1), testDefinition(2))
	f.provider.txnErr = fmt.Errorf("upstream 502")

	err := f.engine.RunAll(context.Background())
	require.NoError(t, err)
	// Both definitions attempted, both failures reported.
	assert.Equal(t, 2, f.provider.fetchCalls)
	assert.Len(t, f.dispatcher.errors, 2)
}

func TestRunAllRecordsFailedDeliveries(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.provider.txns = clusterTxns(time.Now().UTC())
	f.dispatcher.results = []delivery.Result{
		{Recipient: 100, MessageID: 7, ChatID: 100},
		{Recipient: 200, Err: apperrors.NewDeliveryError(200, 3, fmt.Errorf("blocked"))},
	}

	require.NoError(t, f.engine.RunAll(context.Background()))
	require.Len(t, f.deliveries.inserts, 2)
	assert.Equal(t, storage.DeliveryStatusDelivered, f.deliveries.inserts[0].Status)
	assert.Equal(t, storage.DeliveryStatusFailed, f.deliveries.inserts[1].Status)
	assert.Zero(t, f.deliveries.inserts[1].MessageID)
}

func webhookPayload(id string, entries ...types.ActivityEntry) *types.WebhookPayload {
	return &types.WebhookPayload{
		ID:    id,
		Event: types.WebhookEvent{Activity: entries},
	}
}

func TestHandleActivityDuplicateDeliveryRejected(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.wallets.wallets = []string{"0xAAA1"}
	payload := webhookPayload("whd-1", types.ActivityEntry{
		ToAddress:   "0xaaa1",
		Value:       2000,
		Asset:       "PEPE",
		RawContract: types.RawContract{Address: "0xt0ken"},
	})

	require.NoError(t, f.engine.HandleActivity(context.Background(), payload))

	err := f.engine.HandleActivity(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDuplicateWebhook))
}

func TestHandleActivityIgnoresUnwatchedWallets(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.wallets.wallets = []string{"0xaaa1"}
	payload := webhookPayload("whd-2",
		types.ActivityEntry{ToAddress: "0xzzz9", Value: 9000, Asset: "PEPE", RawContract: types.RawContract{Address: "0xt0ken"}},
	)

	require.NoError(t, f.engine.HandleActivity(context.Background(), payload))
	assert.Empty(t, f.dispatcher.delivered)
	// Session never touched when nothing is watched.
	assert.Equal(t, 0, f.session.calls)
}

func TestHandleActivityDeliversWatchedCluster(t *testing.T) {
	def := testDefinition(1)
	def.Filter.MinDistinctWallets = 2
	f := newFixture(def)
	f.wallets.wallets = []string{"0xaaa1", "0xbbb2"}
	payload := webhookPayload("whd-3",
		types.ActivityEntry{ToAddress: "0xAAA1", Value: 2000, Asset: "PEPE", RawContract: types.RawContract{Address: "0xT0KEN"}},
		types.ActivityEntry{ToAddress: "0xbbb2", Value: 1500, Asset: "PEPE", RawContract: types.RawContract{Address: "0xt0ken"}},
	)

	require.NoError(t, f.engine.HandleActivity(context.Background(), payload))
	require.Len(t, f.dispatcher.delivered, 1)
	assert.Contains(t, f.dispatcher.delivered[0], "PEPE")
}

func TestHandleActivityMissingDeliveryID(t *testing.T) {
	f := newFixture(testDefinition(1))
	err := f.engine.HandleActivity(context.Background(), webhookPayload(""))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}

func TestRefreshTopWallets(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.provider.topWallets = []string{"0xaaa1", "0xbbb2", "0xccc3"}

	count, err := f.engine.RefreshTopWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, f.provider.topWallets, f.wallets.wallets)
	require.Len(t, f.dispatcher.infos, 1)
	assert.Contains(t, f.dispatcher.infos[0], "3 wallets")
}

func TestRefreshTopWalletsEmptyResultIsError(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.provider.topWallets = nil

	_, err := f.engine.RefreshTopWallets(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, f.dispatcher.errors)
}

func TestRefreshRendersStoredSnapshot(t *testing.T) {
	f := newFixture(testDefinition(1))
	f.deliveries.stored = &storage.DeliveryRecord{
		AlertID:      1,
		TokenAddress: "0xt0ken",
		TokenSymbol:  "PEPE",
		Transactions: clusterTxns(time.Now().UTC()),
		ChatID:       100,
		MessageID:    7,
	}

	text, err := f.engine.Refresh(context.Background(), 100, 7)
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "PEPE"))
	assert.True(t, strings.Contains(text, "0xt0ken"))
	assert.Equal(t, 1, f.enricher.calls)
}

func TestRefreshUnknownMessage(t *testing.T) {
	f := newFixture(testDefinition(1))
	_, err := f.engine.Refresh(context.Background(), 100, 404)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}
