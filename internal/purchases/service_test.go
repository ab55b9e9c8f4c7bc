package purchases

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// memoryStore backs both the purchase repository and the ledger tx repository
// so a test transaction sees one consistent state. The store mutex plays the
// role of the row lock: WithTx callers serialize exactly like concurrent
// transactions blocked on SELECT ... FOR UPDATE.
type memoryStore struct {
	mu        sync.Mutex
	nextID    int64
	nextEntry int64
	purchases map[int64]Purchase
	lines     map[int64][]Line
	stock     map[int64]float64
	entries   []ledger.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		purchases: map[int64]Purchase{},
		lines:     map[int64][]Line{},
		stock:     map[int64]float64{},
	}
}

func (m *memoryStore) snapshot() *memoryStore {
	snap := newMemoryStore()
	snap.nextID = m.nextID
	snap.nextEntry = m.nextEntry
	for id, p := range m.purchases {
		snap.purchases[id] = p
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
	m.purchases = snap.purchases
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

func (m *memoryStore) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Purchase
	for _, p := range m.purchases {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (PurchaseWithLines, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return PurchaseWithLines{}, httpx.ErrNotFound
	}
	return PurchaseWithLines{Purchase: p, Lines: append([]Line(nil), m.lines[id]...)}, nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) Ledger() ledger.TxRepository { return &memoryLedgerTx{store: t.store} }

func (t *memoryTx) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	t.store.nextID++
	p.ID = t.store.nextID
	t.store.purchases[p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	t.store.nextID++
	line.ID = t.store.nextID
	t.store.lines[line.PurchaseID] = append(t.store.lines[line.PurchaseID], line)
	return line.ID, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	p, ok := t.store.purchases[id]
	if !ok {
		return Purchase{}, httpx.ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) Lines(ctx context.Context, purchaseID int64) ([]Line, error) {
	return append([]Line(nil), t.store.lines[purchaseID]...), nil
}

func (t *memoryTx) UpdateHeader(ctx context.Context, p Purchase) error {
	cur, ok := t.store.purchases[p.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	cur.SupplierID = p.SupplierID
	cur.WarehouseID = p.WarehouseID
	cur.Date = p.Date
	cur.Notes = p.Notes
	cur.Total = p.Total
	t.store.purchases[p.ID] = cur
	return nil
}

func (t *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	p, ok := t.store.purchases[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Status = status
	t.store.purchases[id] = p
	return nil
}

func (t *memoryTx) DeleteLines(ctx context.Context, purchaseID int64) error {
	delete(t.store.lines, purchaseID)
	return nil
}

func (t *memoryTx) DeletePurchase(ctx context.Context, id int64) error {
	if _, ok := t.store.purchases[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.store.purchases, id)
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
	return NewService(store, ledgerSvc, &seqCodes{}, nil)
}

// ledgerPort adapts the store to the ledger's repository port. Only the tx
// methods are used by these tests.
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

func createTestPurchase(t *testing.T, svc *Service, store *memoryStore) int64 {
	t.Helper()
	store.stock[1] = 5
	store.stock[2] = 0
	created, err := svc.Create(context.Background(), CreatePurchaseRequest{
		SupplierID:  1,
		WarehouseID: 1,
		Date:        "2026-08-01",
		Items: []LineRequest{
			{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(4)},
			{ProductID: 2, Quantity: 3, UnitCost: decimal.NewFromInt(25)},
		},
	}, "", 0)
	require.NoError(t, err)
	return created.ID
}

func TestCreateIsPendingAndLeavesStockAlone(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	id := createTestPurchase(t, svc, store)

	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Len(t, p.Lines, 2)
	require.Equal(t, "115", p.Total.String())
	require.Equal(t, 5.0, store.stock[1])
	require.Equal(t, 0.0, store.stock[2])
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), CreatePurchaseRequest{
		WarehouseID: 1,
		Date:        "2026-08-01",
		Items:       []LineRequest{{ProductID: 1, Quantity: 1}},
	}, "", 0)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreatePurchaseRequest{
		SupplierID:  1,
		WarehouseID: 1,
		Date:        "2026-08-01",
	}, "", 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestReceiveAppliesDeltasOnce(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.Equal(t, 15.0, store.stock[1])
	require.Equal(t, 3.0, store.stock[2])

	// Retrying the same transition is a no-op.
	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.Equal(t, 15.0, store.stock[1])
	require.Equal(t, 3.0, store.stock[2])
}

func TestUnreceiveReversesDeltas(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusPending, 0))
	require.Equal(t, 5.0, store.stock[1])
	require.Equal(t, 0.0, store.stock[2])

	// Receiving again re-applies cleanly after the reversal.
	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.Equal(t, 15.0, store.stock[1])
}

func TestCancelledIsTerminal(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusCancelled, 0))
	err := svc.UpdateStatus(context.Background(), id, StatusReceived, 0)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestCancelAfterReceiveReversesStock(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusCancelled, 0))
	require.Equal(t, 5.0, store.stock[1])
	require.Equal(t, 0.0, store.stock[2])
}

func TestEditOnlyWhilePending(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	err := svc.Update(context.Background(), id, UpdatePurchaseRequest{
		SupplierID:  1,
		WarehouseID: 1,
		Date:        "2026-08-02",
		Items:       []LineRequest{{ProductID: 1, Quantity: 1, UnitCost: decimal.NewFromInt(4)}},
	}, 0)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestDeleteReversesAppliedPurchase(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, StatusReceived, 0))
	require.NoError(t, svc.Delete(context.Background(), id, 0))
	require.Equal(t, 5.0, store.stock[1])
	require.Equal(t, 0.0, store.stock[2])

	_, err := svc.Get(context.Background(), id)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestConcurrentReceiveAppliesOnce(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.UpdateStatus(context.Background(), id, StatusReceived, 0)
		}(i)
	}
	wg.Wait()

	// Whichever caller lost the lock race observed received and no-opped.
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 15.0, store.stock[1])
	require.Equal(t, 3.0, store.stock[2])

	active := 0
	for _, e := range store.entries {
		if !e.Reversed {
			active++
		}
	}
	require.Equal(t, 2, active)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	id := createTestPurchase(t, svc, store)

	err := svc.UpdateStatus(context.Background(), id, Status("shipped"), 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
