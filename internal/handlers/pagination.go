package handlers

import (
	"strconv"

	"addressbook/internal/models"
)

const maxPageLimit = 100

// parsePaginationParams reads optional page and limit values. A zero limit
// means the caller asked for no paging.
func parsePaginationParams(pageStr, limitStr string) (page, limit int, err error) {
	page = 1
	if pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, models.Invalid("page", "page must be a positive integer")
		}
	}

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, models.Invalid("limit", "limit must be between 1 and "+strconv.Itoa(maxPageLimit))
		}
	}
	return page, limit, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	// Compare page numbers rather than offsets so huge pages cannot overflow.
	if page < 1 || len(items) == 0 || page-1 > (len(items)-1)/limit {
		return items[:0]
	}
	start := (page - 1) * limit
	end := min(start+limit, len(items))
	return items[start:end]
}
