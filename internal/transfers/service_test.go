package transfers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// memoryStore backs both the transfer repository and the ledger tx repository
// so a test transaction sees one consistent state. The store mutex plays the
// role of the row lock.
type memoryStore struct {
	mu        sync.Mutex
	nextID    int64
	nextEntry int64
	transfers map[int64]Transfer
	lines     map[int64][]Line
	stock     map[int64]float64
	entries   []ledger.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		transfers: map[int64]Transfer{},
		lines:     map[int64][]Line{},
		stock:     map[int64]float64{},
	}
}

func (m *memoryStore) snapshot() *memoryStore {
	snap := newMemoryStore()
	snap.nextID = m.nextID
	snap.nextEntry = m.nextEntry
	for id, tr := range m.transfers {
		snap.transfers[id] = tr
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
	m.transfers = snap.transfers
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

func (m *memoryStore) List(ctx context.Context, filters ListFilters) ([]Transfer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transfer
	for _, tr := range m.transfers {
		out = append(out, tr)
	}
	return out, len(out), nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (TransferWithLines, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.transfers[id]
	if !ok {
		return TransferWithLines{}, httpx.ErrNotFound
	}
	return TransferWithLines{Transfer: tr, Lines: append([]Line(nil), m.lines[id]...)}, nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) Ledger() ledger.TxRepository { return &memoryLedgerTx{store: t.store} }

func (t *memoryTx) InsertTransfer(ctx context.Context, tr Transfer) (int64, error) {
	t.store.nextID++
	tr.ID = t.store.nextID
	t.store.transfers[tr.ID] = tr
	return tr.ID, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	t.store.nextID++
	line.ID = t.store.nextID
	t.store.lines[line.TransferID] = append(t.store.lines[line.TransferID], line)
	return line.ID, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Transfer, error) {
	tr, ok := t.store.transfers[id]
	if !ok {
		return Transfer{}, httpx.ErrNotFound
	}
	return tr, nil
}

func (t *memoryTx) DeleteTransfer(ctx context.Context, id int64) error {
	if _, ok := t.store.transfers[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.store.transfers, id)
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

// InsertEntry mirrors the partial unique index on stock_entries: at most one
// live entry per (document_type, document_id, product_id, warehouse_id). Both
// legs of a transfer must be accepted under it.
func (t *memoryLedgerTx) InsertEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	for _, e := range t.store.entries {
		if !e.Reversed && e.DocumentType == entry.DocumentType && e.DocumentID == entry.DocumentID &&
			e.ProductID == entry.ProductID && e.WarehouseID == entry.WarehouseID {
			return 0, errors.New("duplicate key value violates unique constraint \"idx_stock_entries_active_doc\"")
		}
	}
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

func newTestService(store *memoryStore) *Service {
	ledgerSvc := ledger.NewService(store.ledgerPort(), nil, nil, nil, ledger.ServiceConfig{})
	return NewService(store, ledgerSvc, &seqCodes{})
}

func createTestTransfer(t *testing.T, svc *Service, store *memoryStore) int64 {
	t.Helper()
	store.stock[1] = 10
	store.stock[2] = 6
	created, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 2,
		Date:                   "2026-08-01",
		Items: []LineRequest{
			{ProductID: 1, Quantity: 4},
			{ProductID: 2, Quantity: 2},
		},
	}, 0)
	require.NoError(t, err)
	return created.ID
}

func TestCreatePostsBothLegsPerProduct(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	id := createTestTransfer(t, svc, store)

	tr, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, tr.Lines, 2)

	// A transfer moves stock between warehouses; the product totals do not
	// change, but each item writes one live entry per warehouse.
	require.Equal(t, 10.0, store.stock[1])
	require.Equal(t, 6.0, store.stock[2])
	require.Len(t, store.entries, 4)

	legs := map[int64]map[int64]float64{}
	for _, e := range store.entries {
		require.False(t, e.Reversed)
		if legs[e.ProductID] == nil {
			legs[e.ProductID] = map[int64]float64{}
		}
		legs[e.ProductID][e.WarehouseID] = e.Qty
	}
	require.Equal(t, -4.0, legs[1][1])
	require.Equal(t, 4.0, legs[1][2])
	require.Equal(t, -2.0, legs[2][1])
	require.Equal(t, 2.0, legs[2][2])
}

func TestCreateRejectsSameWarehouse(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	store.stock[1] = 10

	_, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 1,
		Date:                   "2026-08-01",
		Items:                  []LineRequest{{ProductID: 1, Quantity: 1}},
	}, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, store.entries)
}

func TestCreateInsufficientSourceStock(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	store.stock[1] = 3

	_, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 2,
		Date:                   "2026-08-01",
		Items:                  []LineRequest{{ProductID: 1, Quantity: 5}},
	}, 0)
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.Empty(t, store.transfers)
	require.Empty(t, store.entries)
	require.Equal(t, 3.0, store.stock[1])
}

func TestCreateValidatesRequest(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 2,
		Date:                   "2026-08-01",
	}, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 2,
		Date:                   "01/08/2026",
		Items:                  []LineRequest{{ProductID: 1, Quantity: 1}},
	}, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteReversesBothLegs(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestTransfer(t, svc, store)

	require.NoError(t, svc.Delete(context.Background(), id, 0))
	require.Equal(t, 10.0, store.stock[1])
	require.Equal(t, 6.0, store.stock[2])
	for _, e := range store.entries {
		require.True(t, e.Reversed)
	}

	_, err := svc.Get(context.Background(), id)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeleteMissingTransfer(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	err := svc.Delete(context.Background(), 42, 0)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
