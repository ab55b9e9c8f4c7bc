package shared

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

func TestValidateStructNamesFailingFields(t *testing.T) {
	type req struct {
		WarehouseID int64  `validate:"required,gt=0"`
		Date        string `validate:"required"`
	}

	err := ValidateStruct(req{})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "warehouse_id")
	require.Contains(t, err.Error(), "date")

	require.NoError(t, ValidateStruct(req{WarehouseID: 1, Date: "2026-01-01"}))
}

func TestSnake(t *testing.T) {
	require.Equal(t, "warehouse_id", snake("WarehouseID"))
	require.Equal(t, "date", snake("Date"))
	require.Equal(t, "tax_rate", snake("TaxRate"))
	require.Equal(t, "id", snake("ID"))
}
