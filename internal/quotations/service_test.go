package quotations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/sales"
)

type memoryStore struct {
	mu         sync.Mutex
	nextID     int64
	quotations map[int64]Quotation
	lines      map[int64][]Line
}

func newMemoryStore() *memoryStore {
	return &memoryStore{quotations: map[int64]Quotation{}, lines: map[int64][]Line{}}
}

func (m *memoryStore) snapshot() (map[int64]Quotation, map[int64][]Line, int64) {
	qs := make(map[int64]Quotation, len(m.quotations))
	for id, q := range m.quotations {
		qs[id] = q
	}
	ls := make(map[int64][]Line, len(m.lines))
	for id, lines := range m.lines {
		ls[id] = append([]Line(nil), lines...)
	}
	return qs, ls, m.nextID
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs, ls, next := m.snapshot()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		m.quotations, m.lines, m.nextID = qs, ls, next
		return err
	}
	return nil
}

func (m *memoryStore) List(ctx context.Context, filters ListFilters) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotations {
		out = append(out, q)
	}
	return out, len(out), nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (QuotationWithLines, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return QuotationWithLines{}, httpx.ErrNotFound
	}
	return QuotationWithLines{Quotation: q, Lines: append([]Line(nil), m.lines[id]...)}, nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) InsertQuotation(ctx context.Context, q Quotation) (int64, error) {
	t.store.nextID++
	q.ID = t.store.nextID
	t.store.quotations[q.ID] = q
	return q.ID, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	t.store.nextID++
	line.ID = t.store.nextID
	t.store.lines[line.QuotationID] = append(t.store.lines[line.QuotationID], line)
	return line.ID, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	q, ok := t.store.quotations[id]
	if !ok {
		return Quotation{}, httpx.ErrNotFound
	}
	return q, nil
}

func (t *memoryTx) Lines(ctx context.Context, quotationID int64) ([]Line, error) {
	return append([]Line(nil), t.store.lines[quotationID]...), nil
}

func (t *memoryTx) UpdateHeader(ctx context.Context, q Quotation) error {
	if _, ok := t.store.quotations[q.ID]; !ok {
		return httpx.ErrNotFound
	}
	t.store.quotations[q.ID] = q
	return nil
}

func (t *memoryTx) SetConverted(ctx context.Context, id, saleID int64) error {
	q, ok := t.store.quotations[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.Status = StatusConverted
	q.SaleID = saleID
	t.store.quotations[id] = q
	return nil
}

func (t *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	q, ok := t.store.quotations[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.Status = status
	if status == StatusOpen {
		q.SaleID = 0
	}
	t.store.quotations[id] = q
	return nil
}

func (t *memoryTx) DeleteLines(ctx context.Context, quotationID int64) error {
	delete(t.store.lines, quotationID)
	return nil
}

func (t *memoryTx) DeleteQuotation(ctx context.Context, id int64) error {
	if _, ok := t.store.quotations[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.store.quotations, id)
	return nil
}

// fakeSales records what conversion hands to the sales service.
type fakeSales struct {
	mu       sync.Mutex
	requests []sales.CreateSaleRequest
	keys     []string
	nextID   int64
	err      error
}

func (f *fakeSales) Create(ctx context.Context, req sales.CreateSaleRequest, idemKey string, actorID int64) (sales.SaleWithLines, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return sales.SaleWithLines{}, f.err
	}
	f.requests = append(f.requests, req)
	f.keys = append(f.keys, idemKey)
	f.nextID++
	return sales.SaleWithLines{Sale: sales.Sale{ID: f.nextID, Code: fmt.Sprintf("SAL-%06d", f.nextID)}}, nil
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

func createTestQuotation(t *testing.T, svc *Service) QuotationWithLines {
	t.Helper()
	q, err := svc.Create(context.Background(), CreateQuotationRequest{
		CustomerID:  3,
		WarehouseID: 1,
		Date:        "2026-04-10",
		TaxRate:     decimal.NewFromInt(10),
		Items: []LineRequest{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(30)},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(40)},
		},
	}, 1)
	require.NoError(t, err)
	return q
}

func TestCreateComputesTotals(t *testing.T) {
	svc := NewService(newMemoryStore(), &fakeSales{}, &seqCodes{})
	q := createTestQuotation(t, svc)

	require.Contains(t, q.Code, "QT-")
	require.Equal(t, StatusOpen, q.Status)
	require.True(t, q.Subtotal.Equal(decimal.NewFromInt(100)), "subtotal %s", q.Subtotal)
	require.True(t, q.TaxAmount.Equal(decimal.NewFromInt(10)), "tax %s", q.TaxAmount)
	require.True(t, q.GrandTotal.Equal(decimal.NewFromInt(110)), "grand %s", q.GrandTotal)
	require.Len(t, q.Lines, 2)
}

func TestConvertCreatesSaleAndLinks(t *testing.T) {
	store := newMemoryStore()
	salesSvc := &fakeSales{}
	svc := NewService(store, salesSvc, &seqCodes{})
	q := createTestQuotation(t, svc)

	sale, err := svc.Convert(context.Background(), q.ID, 7)
	require.NoError(t, err)
	require.NotZero(t, sale.ID)

	got, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, got.Status)
	require.Equal(t, sale.ID, got.SaleID)

	require.Len(t, salesSvc.requests, 1)
	req := salesSvc.requests[0]
	require.Equal(t, q.CustomerID, req.CustomerID)
	require.Equal(t, q.WarehouseID, req.WarehouseID)
	require.Len(t, req.Items, 2)
	require.Equal(t, int64(1), req.Items[0].ProductID)
	require.Equal(t, 2.0, req.Items[0].Quantity)
	require.NotEmpty(t, salesSvc.keys[0], "conversion must pass an idempotency key")
}

func TestConvertTwiceFails(t *testing.T) {
	svc := NewService(newMemoryStore(), &fakeSales{}, &seqCodes{})
	q := createTestQuotation(t, svc)

	_, err := svc.Convert(context.Background(), q.ID, 1)
	require.NoError(t, err)

	_, err = svc.Convert(context.Background(), q.ID, 1)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestConvertRevertsWhenSaleFails(t *testing.T) {
	store := newMemoryStore()
	salesSvc := &fakeSales{err: errors.New("out of stock")}
	svc := NewService(store, salesSvc, &seqCodes{})
	q := createTestQuotation(t, svc)

	_, err := svc.Convert(context.Background(), q.ID, 1)
	require.Error(t, err)

	got, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status, "failed conversion must reopen the quotation")
	require.Zero(t, got.SaleID)
}

func TestUpdateAndDeleteFrozenAfterConvert(t *testing.T) {
	svc := NewService(newMemoryStore(), &fakeSales{}, &seqCodes{})
	q := createTestQuotation(t, svc)

	_, err := svc.Convert(context.Background(), q.ID, 1)
	require.NoError(t, err)

	err = svc.Update(context.Background(), q.ID, UpdateQuotationRequest{
		CustomerID:  3,
		WarehouseID: 1,
		Date:        "2026-04-11",
		Items:       []LineRequest{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}, 1)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	require.ErrorIs(t, svc.Delete(context.Background(), q.ID), httpx.ErrInvalidTransition)
}

func TestCreateValidatesRequest(t *testing.T) {
	svc := NewService(newMemoryStore(), &fakeSales{}, &seqCodes{})

	_, err := svc.Create(context.Background(), CreateQuotationRequest{}, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateQuotationRequest{
		CustomerID:  1,
		WarehouseID: 1,
		Date:        "April 10",
		Items:       []LineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
