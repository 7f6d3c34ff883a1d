package repository

import "testing"

func TestNewPagination_Clamps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{3, 500, 3, MaxPageSize},
		{2, 10, 2, 10},
	}
	for _, tc := range cases {
		got := NewPagination(tc.page, tc.size)
		if got.Page != tc.wantPage || got.PageSize != tc.wantSize {
			t.Fatalf("NewPagination(%d, %d) = %+v, want page=%d size=%d", tc.page, tc.size, got, tc.wantPage, tc.wantSize)
		}
	}
}

func TestPagination_Offset(t *testing.T) {
	t.Parallel()

	if got := NewPagination(3, 10).Offset(); got != 20 {
		t.Fatalf("Offset() = %d, want 20", got)
	}
}

func TestNewPagedResult_TotalPages(t *testing.T) {
	t.Parallel()

	res := NewPagedResult([]int{1, 2, 3, 4, 5}, 25, NewPagination(3, 10))
	if res.TotalPages != 3 {
		t.Fatalf("TotalPages = %d, want 3", res.TotalPages)
	}
}
