package adjustments

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

type memoryStore struct {
	mu          sync.Mutex
	nextID      int64
	nextEntry   int64
	adjustments map[int64]Adjustment
	lines       map[int64][]Line
	stock       map[int64]float64
	entries     []ledger.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		adjustments: map[int64]Adjustment{},
		lines:       map[int64][]Line{},
		stock:       map[int64]float64{},
	}
}

func (m *memoryStore) snapshot() *memoryStore {
	snap := newMemoryStore()
	snap.nextID = m.nextID
	snap.nextEntry = m.nextEntry
	for id, a := range m.adjustments {
		snap.adjustments[id] = a
	}
	for id, ls := range m.lines {
		snap.lines[id] = append([]Line(nil), ls...)
	}
	for id, s := range m.stock {
		snap.stock[id] = s
	}
	snap.entries = append([]ledger.Entry(nil), m.entries...)
	return snap
}

func (m *memoryStore) restore(snap *memoryStore) {
	m.nextID = snap.nextID
	m.nextEntry = snap.nextEntry
	m.adjustments = snap.adjustments
	m.lines = snap.lines
	m.stock = snap.stock
	m.entries = snap.entries
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryStore) List(ctx context.Context, filters ListFilters) ([]Adjustment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Adjustment
	for _, a := range m.adjustments {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (AdjustmentWithLines, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adjustments[id]
	if !ok {
		return AdjustmentWithLines{}, httpx.ErrNotFound
	}
	return AdjustmentWithLines{Adjustment: a, Lines: append([]Line(nil), m.lines[id]...)}, nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) Ledger() ledger.TxRepository { return &memoryLedgerTx{store: t.store} }

func (t *memoryTx) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	t.store.nextID++
	adj.ID = t.store.nextID
	t.store.adjustments[adj.ID] = adj
	return adj.ID, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	t.store.nextID++
	line.ID = t.store.nextID
	t.store.lines[line.AdjustmentID] = append(t.store.lines[line.AdjustmentID], line)
	return line.ID, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Adjustment, error) {
	a, ok := t.store.adjustments[id]
	if !ok {
		return Adjustment{}, httpx.ErrNotFound
	}
	return a, nil
}

func (t *memoryTx) DeleteAdjustment(ctx context.Context, id int64) error {
	if _, ok := t.store.adjustments[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.store.adjustments, id)
	delete(t.store.lines, id)
	return nil
}

type memoryLedgerTx struct {
	store *memoryStore
}

func (t *memoryLedgerTx) GetProductStockForUpdate(ctx context.Context, productID int64) (float64, bool, error) {
	stock, ok := t.store.stock[productID]
	return stock, ok, nil
}

func (t *memoryLedgerTx) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	t.store.stock[productID] = stock
	return nil
}

func (t *memoryLedgerTx) HasActiveEntries(ctx context.Context, doc ledger.DocumentRef) (bool, error) {
	for _, e := range t.store.entries {
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryLedgerTx) ActiveEntries(ctx context.Context, doc ledger.DocumentRef) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range t.store.entries {
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memoryLedgerTx) InsertEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	t.store.nextEntry++
	entry.ID = t.store.nextEntry
	t.store.entries = append(t.store.entries, entry)
	return entry.ID, nil
}

func (t *memoryLedgerTx) MarkReversed(ctx context.Context, doc ledger.DocumentRef) error {
	for i, e := range t.store.entries {
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			t.store.entries[i].Reversed = true
		}
	}
	return nil
}

func (m *memoryStore) ledgerPort() ledger.RepositoryPort { return &memoryLedgerPort{store: m} }

type memoryLedgerPort struct {
	store *memoryStore
}

func (p *memoryLedgerPort) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	snap := p.store.snapshot()
	if err := fn(ctx, &memoryLedgerTx{store: p.store}); err != nil {
		p.store.restore(snap)
		return err
	}
	return nil
}

func (p *memoryLedgerPort) StockCard(ctx context.Context, filter ledger.StockCardFilter) ([]ledger.StockCardRow, int, error) {
	return nil, 0, nil
}

func (p *memoryLedgerPort) StockLevels(ctx context.Context, belowAlertOnly bool) ([]ledger.StockLevel, error) {
	return nil, nil
}

type seqCodes struct {
	mu sync.Mutex
	n  int
}

func (c *seqCodes) Next(ctx context.Context, prefix string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("%s-%06d", prefix, c.n), nil
}

func newTestService(store *memoryStore) *Service {
	ledgerSvc := ledger.NewService(store.ledgerPort(), nil, nil, nil, ledger.ServiceConfig{})
	return NewService(store, ledgerSvc, &seqCodes{})
}

func TestCreateAppliesSignedDeltas(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	store.stock[2] = 8
	svc := newTestService(store)

	adj, err := svc.Create(context.Background(), CreateAdjustmentRequest{
		WarehouseID: 1,
		Date:        "2026-03-01",
		Items: []CreateLineRequest{
			{ProductID: 1, Quantity: 4, Type: "add"},
			{ProductID: 2, Quantity: 3, Type: "subtract"},
		},
	}, 1)
	require.NoError(t, err)
	require.NotZero(t, adj.ID)
	require.Contains(t, adj.Code, "ADJ-")
	require.Len(t, adj.Lines, 2)

	require.Equal(t, 14.0, store.stock[1])
	require.Equal(t, 5.0, store.stock[2])
	require.Len(t, store.entries, 2)
	require.Equal(t, 4.0, store.entries[0].Qty)
	require.Equal(t, -3.0, store.entries[1].Qty)
}

func TestCreateRejectsOversubtract(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 2
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), CreateAdjustmentRequest{
		WarehouseID: 1,
		Date:        "2026-03-01",
		Items:       []CreateLineRequest{{ProductID: 1, Quantity: 5, Type: "subtract"}},
	}, 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	require.Equal(t, 2.0, store.stock[1])
	require.Empty(t, store.adjustments, "document must roll back with the deltas")
}

func TestCreateValidatesRequest(t *testing.T) {
	svc := newTestService(newMemoryStore())

	_, err := svc.Create(context.Background(), CreateAdjustmentRequest{}, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateAdjustmentRequest{
		WarehouseID: 1,
		Date:        "2026-03-01",
		Items:       []CreateLineRequest{{ProductID: 1, Quantity: 1, Type: "remove"}},
	}, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateAdjustmentRequest{
		WarehouseID: 1,
		Date:        "01/03/2026",
		Items:       []CreateLineRequest{{ProductID: 1, Quantity: 1, Type: "add"}},
	}, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteReversesDeltas(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	svc := newTestService(store)

	adj, err := svc.Create(context.Background(), CreateAdjustmentRequest{
		WarehouseID: 1,
		Date:        "2026-03-01",
		Items:       []CreateLineRequest{{ProductID: 1, Quantity: 6, Type: "add"}},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, 16.0, store.stock[1])

	require.NoError(t, svc.Delete(context.Background(), adj.ID, 1))
	require.Equal(t, 10.0, store.stock[1])
	require.Empty(t, store.adjustments)
	for _, e := range store.entries {
		require.True(t, e.Reversed)
	}
}

func TestDeleteMissingAdjustment(t *testing.T) {
	svc := newTestService(newMemoryStore())
	require.ErrorIs(t, svc.Delete(context.Background(), 42, 1), httpx.ErrNotFound)
}
