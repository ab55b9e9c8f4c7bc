package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	cases := []struct {
		name       string
		page       int
		limit      int
		total      int
		wantPage   int
		wantLimit  int
		wantPages  int
		wantOffset int
	}{
		{name: "partial last page", page: 3, limit: 10, total: 23, wantPage: 3, wantLimit: 10, wantPages: 3, wantOffset: 20},
		{name: "exact fit", page: 1, limit: 10, total: 20, wantPage: 1, wantLimit: 10, wantPages: 2, wantOffset: 0},
		{name: "empty result", page: 1, limit: 10, total: 0, wantPage: 1, wantLimit: 10, wantPages: 0, wantOffset: 0},
		{name: "defaults applied", page: 0, limit: 0, total: 45, wantPage: 1, wantLimit: DefaultPerPage, wantPages: 3, wantOffset: 0},
		{name: "single row", page: 1, limit: 10, total: 1, wantPage: 1, wantLimit: 10, wantPages: 1, wantOffset: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.limit, tc.total)
			require.Equal(t, tc.wantPage, p.Page)
			require.Equal(t, tc.wantLimit, p.Limit)
			require.Equal(t, tc.total, p.Total)
			require.Equal(t, tc.wantPages, p.TotalPages)
			require.Equal(t, tc.wantOffset, p.Offset())
		})
	}
}
