package main

import (
	"net/http"
	"strconv"
)

// PageWindow is a 1-indexed page over a fixed page size.
type PageWindow struct {
	Page     int
	PageSize int
}

// ParsePageWindow reads the "page" query parameter, defaulting to page 1 and
// clamping anything below 1.
func ParsePageWindow(r *http.Request, pageSize int) PageWindow {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	return PageWindow{Page: page, PageSize: pageSize}
}

// Offset is the row offset of the window's first row.
func (w PageWindow) Offset() int {
	return (w.Page - 1) * w.PageSize
}

// HasPrev reports whether an earlier page exists.
func (w PageWindow) HasPrev() bool {
	return w.Page > 1
}

// HasNextByCount decides next-page availability from an exact total row count.
func (w PageWindow) HasNextByCount(total int64) bool {
	return int64(w.Page*w.PageSize) < total
}

// HasNextByFill infers next-page availability from whether the current page
// came back full. Used where no exact total is available (the user listing);
// it misreports when the final page is exactly full.
func (w PageWindow) HasNextByFill(returned int) bool {
	return returned == w.PageSize
}
