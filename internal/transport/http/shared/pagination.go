package shared

import (
	"net/http"
	"strconv"

	"restopay/internal/transport/http/api"
)

// Page is the limit/offset window of a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset from the query string. Values that do not
// parse, or are out of range, fall back to the defaults; limit is capped at maxLimit.
func ParsePage(r *http.Request, def, maxLimit int) Page {
	page := Page{Limit: def}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		page.Limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		page.Offset = v
	}
	return page
}

func (p Page) Meta(total int) api.Meta {
	return api.Meta{Total: total, Limit: p.Limit, Offset: p.Offset}
}
