// Package query turns caller-supplied listing parameters into parameterized
// SQL. Only column names registered on a Table ever reach the SQL text;
// every value is bound.
package query

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const dateLayout = "2006-01-02"

type Op int

const (
	OpEq Op = iota
	OpContains
	OpMin
	OpMax
	OpDateFrom
	OpDateTo
)

// Filter binds one public filter name to a column.
type Filter struct {
	Column string
	Op     Op
	Int    bool   // value must be an integer
	Join   string // extra join the filter needs, added once
}

// Table is the whitelist for one listing source.
type Table struct {
	From         string
	Columns      []string
	Joins        []string
	Sortable     map[string]string
	Filters      map[string]Filter
	DefaultOrder string
	MaxPageSize  int
}

type Params struct {
	Filters  map[string]string
	OrderBy  string
	SortDir  string
	Page     int
	PageSize int
}

// Offset is the zero-based row offset of the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Build validates p against the table whitelist and returns the query text
// with its bound arguments. scope predicates (ownership and the like) are
// ANDed into the WHERE clause.
func (t Table) Build(p Params, scope ...sq.Sqlizer) (string, []any, error) {
	order, err := t.orderClause(p.OrderBy, p.SortDir)
	if err != nil {
		return "", nil, err
	}
	if p.Page < 1 {
		return "", nil, shop.Validation("page", "page must be >= 1")
	}
	if p.PageSize < 1 || (t.MaxPageSize > 0 && p.PageSize > t.MaxPageSize) {
		return "", nil, shop.Validation("limit", "limit must be between 1 and %d", t.MaxPageSize)
	}
	// OFFSET is a bigint
	if int64(p.Page-1) > math.MaxInt64/int64(p.PageSize) {
		return "", nil, shop.Validation("page", "page %d is out of range for limit %d", p.Page, p.PageSize)
	}

	preds, joins, err := t.predicates(p.Filters)
	if err != nil {
		return "", nil, err
	}

	b := psql.Select(t.Columns...).From(t.From)
	for _, j := range append(append([]string{}, t.Joins...), joins...) {
		b = b.JoinClause(j)
	}
	for _, s := range scope {
		b = b.Where(s)
	}
	for _, pr := range preds {
		b = b.Where(pr)
	}
	if order != "" {
		b = b.OrderBy(order)
	}
	b = b.Limit(uint64(p.PageSize)).Offset(uint64(p.Offset()))
	return b.ToSql()
}

func (t Table) orderClause(orderBy, dir string) (string, error) {
	dir = strings.ToLower(strings.TrimSpace(dir))
	orderBy = strings.TrimSpace(orderBy)

	col := ""
	if orderBy != "" {
		c, ok := t.Sortable[orderBy]
		if !ok {
			return "", shop.Validation("order_by", "order_by %q is not allowed, allowed: %s", orderBy, strings.Join(t.sortNames(), ", "))
		}
		col = c
	}
	if dir != "" && dir != "asc" && dir != "desc" {
		return "", shop.Validation("sort", "sort %q is not allowed, allowed: asc, desc", dir)
	}
	if dir != "" && col == "" {
		return "", shop.Validation("sort", "sort requires order_by, allowed: %s", strings.Join(t.sortNames(), ", "))
	}
	if col == "" {
		return t.DefaultOrder, nil
	}
	if dir == "" {
		dir = "asc"
	}
	return col + " " + strings.ToUpper(dir), nil
}

func (t Table) sortNames() []string {
	names := make([]string, 0, len(t.Sortable))
	for k := range t.Sortable {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (t Table) predicates(filters map[string]string) ([]sq.Sqlizer, []string, error) {
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	sort.Strings(names)

	var (
		preds []sq.Sqlizer
		joins []string
		seen  = map[string]bool{}
	)
	for _, name := range names {
		raw := strings.TrimSpace(filters[name])
		f, ok := t.Filters[name]
		if !ok {
			return nil, nil, shop.Validation(name, "filter %q is not supported", name)
		}
		if raw == "" {
			continue
		}
		pred, err := f.predicate(name, raw)
		if err != nil {
			return nil, nil, err
		}
		preds = append(preds, pred)
		if f.Join != "" && !seen[f.Join] {
			seen[f.Join] = true
			joins = append(joins, f.Join)
		}
	}
	return preds, joins, nil
}

func (f Filter) predicate(name, raw string) (sq.Sqlizer, error) {
	var v any = raw
	if f.Int {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, shop.Validation(name, "%s must be an integer", name)
		}
		v = n
	}
	switch f.Op {
	case OpContains:
		return sq.ILike{f.Column: "%" + escapeLike(raw) + "%"}, nil
	case OpMin:
		return sq.GtOrEq{f.Column: v}, nil
	case OpMax:
		return sq.LtOrEq{f.Column: v}, nil
	case OpDateFrom, OpDateTo:
		d, err := ParseDate(name, raw)
		if err != nil {
			return nil, err
		}
		if f.Op == OpDateFrom {
			return sq.GtOrEq{f.Column: d}, nil
		}
		// inclusive of the whole max day
		return sq.Lt{f.Column: d.AddDate(0, 0, 1)}, nil
	default:
		return sq.Eq{f.Column: v}, nil
	}
}

// ParseDate accepts YYYY-MM-DD only.
func ParseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, shop.Validation(field, "%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
