package statusnet

import (
	"net/url"
	"strconv"
)

// Paging bounds a timeline request.
// Zero numbers and empty strings are left out of the query.
type Paging struct {
	Page    int
	Count   int
	SinceID string
	MaxID   string
	Cursor  string
}

// Values flattens the paging fields into query parameters
func (p Paging) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Count > 0 {
		v.Set("count", strconv.Itoa(p.Count))
	}
	if p.SinceID != "" {
		v.Set("since_id", p.SinceID)
	}
	if p.MaxID != "" {
		v.Set("max_id", p.MaxID)
	}
	if p.Cursor != "" {
		v.Set("cursor", p.Cursor)
	}
	return v
}

// PagingFromQuery reads paging fields back out of a query string.
// Unparsable numbers are ignored.
func PagingFromQuery(q url.Values) Paging {
	p := Paging{
		SinceID: q.Get("since_id"),
		MaxID:   q.Get("max_id"),
		Cursor:  q.Get("cursor"),
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("count")); err == nil && n > 0 {
		p.Count = n
	}
	return p
}
