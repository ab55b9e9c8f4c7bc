package shared

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Document reference prefixes. Each prefix owns a dedicated Postgres sequence
// so reference codes are unique regardless of wall clock or concurrency.
const (
	PrefixAdjustment     = "ADJ"
	PrefixPurchase       = "PUR"
	PrefixTransfer       = "TRF"
	PrefixSalesReturn    = "SRN"
	PrefixPurchaseReturn = "PRN"
	PrefixSale           = "SAL"
	PrefixQuotation      = "QT"
)

// CodeIssuer is what document services need from the code generator.
type CodeIssuer interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// RefCodes issues document reference codes of the form PREFIX-000042.
type RefCodes struct {
	pool *pgxpool.Pool
}

// NewRefCodes constructs the generator.
func NewRefCodes(pool *pgxpool.Pool) *RefCodes {
	return &RefCodes{pool: pool}
}

var validPrefixes = map[string]struct{}{
	PrefixAdjustment:     {},
	PrefixPurchase:       {},
	PrefixTransfer:       {},
	PrefixSalesReturn:    {},
	PrefixPurchaseReturn: {},
	PrefixSale:           {},
	PrefixQuotation:      {},
}

// Next reserves the next number for the prefix and returns the formatted code.
func (g *RefCodes) Next(ctx context.Context, prefix string) (string, error) {
	if g == nil || g.pool == nil {
		return "", errors.New("shared: refcode generator not initialised")
	}
	if _, ok := validPrefixes[prefix]; !ok {
		return "", fmt.Errorf("shared: unknown reference prefix %q", prefix)
	}
	var n int64
	// Sequence names are derived from the compile-time prefix allowlist above,
	// never from request input.
	query := fmt.Sprintf(`SELECT nextval('ref_seq_%s')`, prefix)
	if err := g.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return "", fmt.Errorf("shared: next ref code: %w", err)
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}
