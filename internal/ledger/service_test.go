package ledger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu      sync.Mutex
	stocks  map[int64]float64
	entries []Entry
	nextID  int64

	failInsertAfter int // 0 disables; n>0 fails the nth InsertEntry
	insertCount     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[int64]float64)}
}

type memoryTx struct {
	repo    *memoryRepo
	stocks  map[int64]float64
	entries []Entry
	marked  map[int64]bool
}

// WithTx snapshots state and only publishes it when fn succeeds, mirroring
// the all-or-nothing behavior of the real transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	tx := &memoryTx{repo: r, stocks: make(map[int64]float64, len(r.stocks)), marked: map[int64]bool{}}
	for k, v := range r.stocks {
		tx.stocks[k] = v
	}
	tx.entries = append(tx.entries, r.entries...)
	r.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	r.stocks = tx.stocks
	r.entries = tx.entries
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardRow, int, error) {
	return nil, 0, nil
}

func (r *memoryRepo) StockLevels(ctx context.Context, belowAlertOnly bool) ([]StockLevel, error) {
	return nil, nil
}

func (tx *memoryTx) GetProductStockForUpdate(ctx context.Context, productID int64) (float64, bool, error) {
	stock, ok := tx.stocks[productID]
	return stock, ok, nil
}

func (tx *memoryTx) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	if _, ok := tx.stocks[productID]; !ok {
		return errors.New("missing product")
	}
	tx.stocks[productID] = stock
	return nil
}

func (tx *memoryTx) HasActiveEntries(ctx context.Context, doc DocumentRef) (bool, error) {
	for _, e := range tx.entries {
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) ActiveEntries(ctx context.Context, doc DocumentRef) ([]Entry, error) {
	var out []Entry
	for _, e := range tx.entries {
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			out = append(out, e)
		}
	}
	return out, nil
}

// InsertEntry enforces the idx_stock_entries_active_doc uniqueness over
// (document_type, document_id, product_id, warehouse_id) among live entries,
// just as the partial index in the schema does.
func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.insertCount++
	if tx.repo.failInsertAfter > 0 && tx.repo.insertCount >= tx.repo.failInsertAfter {
		return 0, errors.New("simulated insert failure")
	}
	for _, e := range tx.entries {
		if !e.Reversed && e.DocumentType == entry.DocumentType && e.DocumentID == entry.DocumentID &&
			e.ProductID == entry.ProductID && e.WarehouseID == entry.WarehouseID {
			return 0, errors.New("duplicate key value violates unique constraint \"idx_stock_entries_active_doc\"")
		}
	}
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.entries = append(tx.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) MarkReversed(ctx context.Context, doc DocumentRef) error {
	for i := range tx.entries {
		e := &tx.entries[i]
		if e.DocumentType == doc.Type && e.DocumentID == doc.ID && !e.Reversed {
			e.Reversed = true
		}
	}
	return nil
}

func TestApplyUpdatesStockAndLedger(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	repo.stocks[2] = 5
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	res, err := svc.Apply(ctx, DocumentRef{Type: DocPurchase, ID: 7, Code: "PUR-000007"}, []Delta{
		{ProductID: 1, Qty: 4},
		{ProductID: 2, Qty: -3},
	}, 1)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.InDelta(t, 14, repo.stocks[1], 1e-9)
	require.InDelta(t, 2, repo.stocks[2], 1e-9)
	require.InDelta(t, 14, res.Entries[0].BalanceAfter, 1e-9)
	require.InDelta(t, 2, res.Entries[1].BalanceAfter, 1e-9)
}

func TestApplyIsAtomicOnFailingLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	repo.stocks[2] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	// Product 99 does not exist; nothing may change for products 1 and 2.
	_, err := svc.Apply(ctx, DocumentRef{Type: DocAdjustment, ID: 1, Code: "ADJ-000001"}, []Delta{
		{ProductID: 1, Qty: 5},
		{ProductID: 99, Qty: 1},
		{ProductID: 2, Qty: -1},
	}, 1)
	require.ErrorIs(t, err, ErrProductMissing)
	require.InDelta(t, 10, repo.stocks[1], 1e-9)
	require.InDelta(t, 10, repo.stocks[2], 1e-9)
	require.Empty(t, repo.entries)
}

func TestApplyRollsBackOnRepositoryFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	repo.stocks[2] = 10
	repo.failInsertAfter = 2
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	_, err := svc.Apply(context.Background(), DocumentRef{Type: DocAdjustment, ID: 2, Code: "ADJ-000002"}, []Delta{
		{ProductID: 1, Qty: 5},
		{ProductID: 2, Qty: 5},
	}, 1)
	var mErr *MutationError
	require.ErrorAs(t, err, &mErr)
	require.Equal(t, 1, mErr.FailingLine)
	require.InDelta(t, 10, repo.stocks[1], 1e-9)
	require.InDelta(t, 10, repo.stocks[2], 1e-9)
	require.Empty(t, repo.entries)
}

func TestApplyTwiceForSameDocumentIsRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()
	doc := DocumentRef{Type: DocPurchase, ID: 3, Code: "PUR-000003"}

	_, err := svc.Apply(ctx, doc, []Delta{{ProductID: 1, Qty: 5}}, 1)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, doc, []Delta{{ProductID: 1, Qty: 5}}, 1)
	require.ErrorIs(t, err, ErrAlreadyApplied)
	require.InDelta(t, 15, repo.stocks[1], 1e-9)
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 3
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	_, err := svc.Apply(context.Background(), DocumentRef{Type: DocSale, ID: 4, Code: "SAL-000004"}, []Delta{{ProductID: 1, Qty: -5}}, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.InDelta(t, 3, repo.stocks[1], 1e-9)
}

func TestBackorderAllowsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 3
	svc := NewService(repo, nil, nil, nil, ServiceConfig{AllowBackorder: true})

	_, err := svc.Apply(context.Background(), DocumentRef{Type: DocSale, ID: 5, Code: "SAL-000005"}, []Delta{{ProductID: 1, Qty: -5}}, 1)
	require.NoError(t, err)
	require.InDelta(t, -2, repo.stocks[1], 1e-9)
}

func TestReverseRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	repo.stocks[2] = 20
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()
	doc := DocumentRef{Type: DocAdjustment, ID: 6, Code: "ADJ-000006"}

	_, err := svc.Apply(ctx, doc, []Delta{
		{ProductID: 1, Qty: 7},
		{ProductID: 2, Qty: -4},
	}, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Reverse(ctx, doc, 1))
	require.Equal(t, 10.0, repo.stocks[1])
	require.Equal(t, 20.0, repo.stocks[2])

	// Second reversal is a no-op.
	require.NoError(t, svc.Reverse(ctx, doc, 1))
	require.Equal(t, 10.0, repo.stocks[1])

	// After reversal the document may be applied again.
	_, err = svc.Apply(ctx, doc, []Delta{{ProductID: 1, Qty: 7}}, 1)
	require.NoError(t, err)
	require.Equal(t, 17.0, repo.stocks[1])
}

func TestLedgerSumInvariant(t *testing.T) {
	repo := newMemoryRepo()
	const productID = int64(1)
	const initial = 1000.0
	repo.stocks[productID] = initial
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	types := []DocumentType{DocAdjustment, DocPurchase, DocSalesReturn, DocSale}
	var docID int64
	for i := 0; i < 200; i++ {
		docID++
		qty := float64(rng.Intn(20) + 1)
		if rng.Intn(2) == 0 {
			qty = -qty
		}
		doc := DocumentRef{Type: types[rng.Intn(len(types))], ID: docID}
		_, err := svc.Apply(ctx, doc, []Delta{{ProductID: productID, Qty: qty}}, 1)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			continue
		}
		if rng.Intn(4) == 0 {
			require.NoError(t, svc.Reverse(ctx, doc, 1))
		}
	}

	var sum float64
	for _, e := range repo.entries {
		if !e.Reversed {
			sum += e.Qty
		}
	}
	require.InDelta(t, repo.stocks[productID]-initial, sum, 1e-6)
}

func TestApplyPostsBothTransferLegsForOneProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	// A transfer writes two live entries for the same product under one
	// document, one per warehouse. Stock nets to zero.
	res, err := svc.Apply(context.Background(), DocumentRef{Type: DocTransfer, ID: 8, Code: "TRF-000008"}, []Delta{
		{ProductID: 1, WarehouseID: 1, Qty: -4},
		{ProductID: 1, WarehouseID: 2, Qty: 4},
	}, 1)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.InDelta(t, 10, repo.stocks[1], 1e-9)
}

type recordingCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
	return nil
}

func (c *recordingCache) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.keys
	c.keys = nil
	return out
}

func TestApplyAndReverseDropStockLevelsCache(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	levels := &recordingCache{}
	svc := NewService(repo, nil, nil, levels, ServiceConfig{})
	ctx := context.Background()
	doc := DocumentRef{Type: DocSale, ID: 9, Code: "SAL-000009"}

	_, err := svc.Apply(ctx, doc, []Delta{{ProductID: 1, Qty: -2}}, 1)
	require.NoError(t, err)
	dropped := levels.take()
	require.Contains(t, dropped, CacheKeyLevelsAll)
	require.Contains(t, dropped, CacheKeyLevelsBelow)

	require.NoError(t, svc.Reverse(ctx, doc, 1))
	dropped = levels.take()
	require.Contains(t, dropped, CacheKeyLevelsAll)
	require.Contains(t, dropped, CacheKeyLevelsBelow)
}
