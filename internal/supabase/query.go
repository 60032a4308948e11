package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// QueryBuilder builds one PostgREST request. Builder methods record the
// first marshal error and Execute returns it.
type QueryBuilder struct {
	client   *Client
	table    string
	method   string
	columns  string
	filters  []string
	orders   []string
	limitVal int
	body     []byte
	headers  map[string]string
	token    string
	err      error
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Upsert inserts or merges on the primary key (or onConflict columns).
func (q *QueryBuilder) Upsert(data any, onConflict string) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation,resolution=merge-duplicates"
	if onConflict != "" {
		q.filters = append(q.filters, "on_conflict="+url.QueryEscape(onConflict))
	}
	return q
}

func (q *QueryBuilder) Update(data any) *QueryBuilder {
	q.method = http.MethodPatch
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) setBody(data any) {
	body, err := json.Marshal(data)
	if err != nil && q.err == nil {
		q.err = fmt.Errorf("marshal body: %w", err)
	}
	q.body = body
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.filter(column, "eq", fmt.Sprint(value))
}

func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.filter(column, "neq", fmt.Sprint(value))
}

func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.filter(column, "gte", fmt.Sprint(value))
}

func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.filter(column, "lte", fmt.Sprint(value))
}

// ILike is a case-insensitive pattern match; use * as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.filter(column, "ilike", pattern)
}

// In matches any of values.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteValue(v)
	}
	return q.filter(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Overlaps matches array columns sharing at least one element with values.
func (q *QueryBuilder) Overlaps(column string, values []string) *QueryBuilder {
	return q.filter(column, "ov", arrayLiteral(values))
}

// Contains matches array columns holding every element of values.
func (q *QueryBuilder) Contains(column string, values []string) *QueryBuilder {
	return q.filter(column, "cs", arrayLiteral(values))
}

// Or adds a raw or=(...) group, e.g. "name.ilike.*rice*,description.ilike.*rice*".
func (q *QueryBuilder) Or(filters string) *QueryBuilder {
	q.filters = append(q.filters, "or="+url.QueryEscape("("+filters+")"))
	return q
}

func (q *QueryBuilder) filter(column, op, value string) *QueryBuilder {
	q.filters = append(q.filters, url.QueryEscape(column)+"="+op+"."+url.QueryEscape(value))
	return q
}

func (q *QueryBuilder) Order(column string, dir OrderDirection) *QueryBuilder {
	q.orders = append(q.orders, column+"."+string(dir))
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = n
	return q
}

// Single asks for one object instead of an array. Zero rows is a 406 with
// code PGRST116, see IsNotFound.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// WithToken runs the request as the given user. Without it the token from
// the context (WithAccessToken) is used, then the anon key.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.token = token
	return q
}

func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.table == "" {
		return nil, fmt.Errorf("table is required")
	}
	token := q.token
	if token == "" {
		token = AccessToken(ctx)
	}
	return q.client.do(ctx, q.method, q.URL(), q.body, q.headers, token)
}

func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// URL renders the request URL; exported for tests and debug logging.
func (q *QueryBuilder) URL() string {
	u := q.client.restURL + "/" + url.PathEscape(q.table)

	var params []string
	if q.columns != "" && (q.method == http.MethodGet || q.headers["Prefer"] != "") {
		params = append(params, "select="+url.QueryEscape(compactColumns(q.columns)))
	}
	params = append(params, q.filters...)
	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}
	if q.limitVal > 0 {
		params = append(params, fmt.Sprintf("limit=%d", q.limitVal))
	}

	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

// compactColumns strips the whitespace used to lay out embedded selects.
func compactColumns(cols string) string {
	return strings.Join(strings.Fields(cols), "")
}

func arrayLiteral(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteValue(v)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func quoteValue(v string) string {
	if strings.ContainsAny(v, ` ,(){}"`) {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
