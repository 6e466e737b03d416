package cloudapi

import (
	"math"
	"slices"
)

const maxPageSize = math.MaxInt32

// PageRequest selects a page out of a listing.
type PageRequest struct {
	// Limit is the maximum number of machines in the page
	Limit int

	// Offset is a number of machines to skip, used only when After is nil
	Offset int

	// After is the cursor of the last machine of the previous page
	After *Cursor
}

// Page is a slice of a listing ordered by creation time and ID.
type Page struct {
	Machines []Machine

	// Next is set only if there are more machines after this page
	Next *Cursor

	// NextToken is the encoded form of Next
	NextToken string
}

// SortMachines orders machines by creation time, using ID to break ties.
func SortMachines(machines []Machine) {
	slices.SortStableFunc(machines, func(a, b Machine) int {
		switch {
		case sortKeyLess(a.Created, a.ID, b.Created, b.ID):
			return -1
		case sortKeyLess(b.Created, b.ID, a.Created, a.ID):
			return 1
		default:
			return 0
		}
	})
}

// Paginate sorts machines and cuts the page requested out of them.
// A cursor of the last machine on the page, bound to the filter fingerprint, is returned if more machines follow.
func Paginate(machines []Machine, req PageRequest, fingerprint string) Page {
	sorted := slices.Clone(machines)
	SortMachines(sorted)

	start := 0
	if req.After != nil {
		after := *req.After
		start, _ = slices.BinarySearchFunc(sorted, after, func(m Machine, c Cursor) int {
			if sortKeyLess(m.Created, m.ID, c.Created, c.ID) || (m.Created.Equal(c.Created) && m.ID == c.ID) {
				return -1
			}
			return 1
		})
	} else if req.Offset > 0 {
		start = min(req.Offset, len(sorted))
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	end := len(sorted)
	if end-start > limit {
		end = start + limit
	}

	page := Page{
		Machines: sorted[start:end],
	}
	if page.Machines == nil {
		page.Machines = []Machine{}
	}

	if end < len(sorted) && end > start {
		last := sorted[end-1]
		page.Next = &Cursor{
			Version:     cursorVersion,
			Fingerprint: fingerprint,
			Created:     last.Created,
			ID:          last.ID,
		}
	}

	return page
}
