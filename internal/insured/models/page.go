package models

import "math"

// Pagination defaults applied by the HTTP layer when query parameters are absent.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Page is one slice of the registry plus the metadata the transport surfaces.
type Page struct {
	Items    []*InsuredPerson
	Total    int
	Page     int
	PageSize int
}

// Offset returns (page-1)*pageSize and false when that product overflows int.
// Callers must have checked page >= 1 and pageSize >= 1.
func Offset(page, pageSize int) (int, bool) {
	skipped := page - 1
	if skipped > 0 && skipped > math.MaxInt/pageSize {
		return 0, false
	}
	return skipped * pageSize, true
}
