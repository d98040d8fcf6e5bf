package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

var reserved = map[string]bool{"page": true, "limit": true, "order_by": true, "sort": true}

// FromValues reads listing parameters from a URL query. Every key that is not
// a paging or ordering key is taken as a filter; Build rejects unknown ones.
func FromValues(v url.Values, defaultPageSize int) (Params, error) {
	p := Params{
		Filters:  map[string]string{},
		OrderBy:  strings.TrimSpace(v.Get("order_by")),
		SortDir:  strings.TrimSpace(v.Get("sort")),
		Page:     1,
		PageSize: defaultPageSize,
	}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, shop.Validation("page", "page must be an integer")
		}
		p.Page = n
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, shop.Validation("limit", "limit must be an integer")
		}
		p.PageSize = n
	}
	for k := range v {
		if reserved[k] {
			continue
		}
		p.Filters[k] = strings.TrimSpace(v.Get(k))
	}
	return p, nil
}

// Fingerprint is a canonical encoding of p, stable across filter map order.
func (p Params) Fingerprint() string {
	keys := make([]string, 0, len(p.Filters))
	for k, v := range p.Filters {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Filters[k]))
		b.WriteByte('&')
	}
	b.WriteString("order_by=" + url.QueryEscape(p.OrderBy))
	b.WriteString("&sort=" + url.QueryEscape(strings.ToLower(p.SortDir)))
	b.WriteString("&page=" + strconv.Itoa(p.Page))
	b.WriteString("&limit=" + strconv.Itoa(p.PageSize))
	return b.String()
}
