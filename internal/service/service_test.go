package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeProvider struct {
	price float64
	err   error
	calls int
}

func (f *fakeProvider) GetPrice(context.Context, string) (float64, error) {
	f.calls++
	return f.price, f.err
}

type cachedPrice struct {
	price float64
	ts    time.Time
}

type fakeCache struct {
	entries map[string]cachedPrice
	getErr  error
	setErr  error
}

func (c *fakeCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[symbol] = cachedPrice{price, ts}
	return nil
}

func (c *fakeCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	if c.getErr != nil {
		return 0, time.Time{}, c.getErr
	}
	e, ok := c.entries[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

func TestPriceServiceCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	provider := &fakeProvider{price: 60000}
	cache := &fakeCache{entries: map[string]cachedPrice{}}
	svc := NewPriceService(provider, cache, 15*time.Second, discard())
	svc.now = func() time.Time { return now }

	p, err := svc.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 60000.0, p)
	assert.Equal(t, 1, provider.calls)

	// fresh hit
	provider.price = 61000
	now = now.Add(10 * time.Second)
	p, err = svc.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 60000.0, p)
	assert.Equal(t, 1, provider.calls)

	// stale entry refetches and rewrites
	now = now.Add(10 * time.Second)
	p, err = svc.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 61000.0, p)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, now, cache.entries["BTC"].ts)
}

func TestPriceServiceBypassesBrokenCache(t *testing.T) {
	provider := &fakeProvider{price: 3000}
	cache := &fakeCache{getErr: errors.New("conn refused"), setErr: errors.New("conn refused")}
	svc := NewPriceService(provider, cache, time.Minute, discard())

	p, err := svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p)
}

func TestPriceServiceProviderError(t *testing.T) {
	provider := &fakeProvider{err: domain.ErrUnavailable}
	svc := NewPriceService(provider, nil, time.Minute, discard())

	_, err := svc.GetPrice(context.Background(), "MON")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

type fakeStore struct {
	inserted []domain.Settlement
	err      error
}

func (f *fakeStore) Insert(_ context.Context, s domain.Settlement) error {
	f.inserted = append(f.inserted, s)
	return f.err
}

func (f *fakeStore) ListRecent(context.Context, domain.ListOpts) ([]domain.SettlementRecord, error) {
	return nil, nil
}

func (f *fakeStore) ListByMarket(context.Context, uint64) ([]domain.SettlementRecord, error) {
	return nil, nil
}

type fakeAudit struct{ events []string }

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	f.streamed[stream] = append(f.streamed[stream], payload)
	return nil
}

type fakeArchiver struct{ archived []uint64 }

func (f *fakeArchiver) Archive(_ context.Context, s domain.Settlement) error {
	f.archived = append(f.archived, s.MarketID)
	return nil
}

type fakeNotifier struct {
	settlements []domain.SettlementStatus
	cycleErrs   int
}

func (f *fakeNotifier) NotifySettlement(_ context.Context, s domain.Settlement) error {
	f.settlements = append(f.settlements, s.Status)
	return nil
}

func (f *fakeNotifier) NotifyCycleError(context.Context, error) error {
	f.cycleErrs++
	return nil
}

func TestSettlementServiceRecord(t *testing.T) {
	store := &fakeStore{}
	bus := &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
	arch := &fakeArchiver{}
	notif := &fakeNotifier{}
	svc := NewSettlementService(SettlementDeps{
		Store: store, Bus: bus, Channel: "settlements", Stream: "settlements:log",
		Archiver: arch, Notifier: notif,
	}, discard())

	confirmed := domain.Settlement{MarketID: 4, Outcome: "Yes", Strategy: "price_threshold", Status: domain.SettlementConfirmed, TxHash: "0xabc"}
	rejected := domain.Settlement{MarketID: 5, Outcome: "No", Strategy: "fallback", Status: domain.SettlementRejected, TxHash: "0xdef"}
	require.NoError(t, svc.Record(context.Background(), confirmed))
	require.NoError(t, svc.Record(context.Background(), rejected))

	assert.Len(t, store.inserted, 2)
	assert.Equal(t, []uint64{4}, arch.archived, "only confirmed settlements are archived")
	assert.Equal(t, []domain.SettlementStatus{domain.SettlementConfirmed, domain.SettlementRejected}, notif.settlements)
	require.Len(t, bus.published["settlements"], 2)
	require.Len(t, bus.streamed["settlements:log"], 2)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.published["settlements"][0], &evt))
	assert.Equal(t, "settlement", evt["event"])
	assert.Equal(t, "Yes", evt["outcome"])
	assert.Equal(t, "confirmed", evt["status"])
	assert.EqualValues(t, 4, evt["market_id"])
}

func TestSettlementServiceJoinsSinkErrors(t *testing.T) {
	storeErr := errors.New("db down")
	store := &fakeStore{err: storeErr}
	notif := &fakeNotifier{}
	svc := NewSettlementService(SettlementDeps{Store: store, Notifier: notif}, discard())

	err := svc.Record(context.Background(), domain.Settlement{MarketID: 1, Status: domain.SettlementUnknown})
	assert.ErrorIs(t, err, storeErr)
	assert.Len(t, notif.settlements, 1, "notifier still runs after a store failure")
}

func TestSettlementServiceNoSinks(t *testing.T) {
	svc := NewSettlementService(SettlementDeps{}, discard())
	assert.NoError(t, svc.Record(context.Background(), domain.Settlement{MarketID: 1}))
	assert.NoError(t, svc.RecordCycleError(context.Background(), errors.New("boom")))
}

func TestRecordCycleError(t *testing.T) {
	audit := &fakeAudit{}
	notif := &fakeNotifier{}
	svc := NewSettlementService(SettlementDeps{Audit: audit, Notifier: notif}, discard())

	require.NoError(t, svc.RecordCycleError(context.Background(), errors.New("market count: rpc down")))
	assert.Equal(t, []string{"cycle_error"}, audit.events)
	assert.Equal(t, 1, notif.cycleErrs)
}
