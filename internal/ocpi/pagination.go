package ocpi

import (
	"net/http"
	"net/url"
	"strconv"
)

// MaxPageSize is the protocol ceiling for the limit of one page.
const MaxPageSize = 100

// Pagination response headers.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderLimit      = "X-Limit"
	HeaderLink       = "Link"
)

// PageParams are the effective offset and limit of a list request.
type PageParams struct {
	Offset int
	Limit  int
}

// ParsePageParams decodes offset and limit from the query. A missing or
// non-numeric limit falls back to ceiling, and any limit is clamped to it.
// A non-numeric or negative offset, and a numeric limit below one, are
// client errors. A ceiling of zero or less means MaxPageSize.
func ParsePageParams(q url.Values, ceiling int) (PageParams, error) {
	if ceiling <= 0 || ceiling > MaxPageSize {
		ceiling = MaxPageSize
	}
	params := PageParams{Limit: ceiling}

	if offset := q.Get("offset"); offset != "" {
		o, err := strconv.Atoi(offset)
		if err != nil {
			return PageParams{}, ErrInvalidParameter("invalid offset").WithDetail(offset)
		}
		if o < 0 {
			return PageParams{}, ErrInvalidParameter("offset must not be negative").WithDetail(offset)
		}
		params.Offset = o
	}

	if limit := q.Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err == nil {
			if l < 1 {
				return PageParams{}, ErrInvalidParameter("limit must be positive").WithDetail(limit)
			}
			if l < ceiling {
				params.Limit = l
			}
		}
	}

	return params, nil
}

// Page describes one page of a list response.
type Page struct {
	PageParams
	Total int

	base  url.URL
	query url.Values
}

// NewPage builds the page for params out of total records. baseURL is the
// absolute URL of the list without query; query holds the request's query
// parameters, which are carried into the next link.
func NewPage(params PageParams, total int, baseURL *url.URL, query url.Values) Page {
	p := Page{PageParams: params, Total: total, query: url.Values{}}
	if baseURL != nil {
		p.base = *baseURL
		p.base.RawQuery = ""
		p.base.Fragment = ""
	}
	for k, vs := range query {
		p.query[k] = append([]string(nil), vs...)
	}
	return p
}

// HasNext reports whether records remain after this page. It compares
// against the records left so an offset near the int ceiling cannot wrap.
func (p Page) HasNext() bool {
	return p.Offset < p.Total && p.Limit < p.Total-p.Offset
}

// NextLink returns the URL of the following page, or "" on the last page.
func (p Page) NextLink() string {
	if !p.HasNext() {
		return ""
	}
	values := url.Values{}
	for k, vs := range p.query {
		values[k] = append([]string(nil), vs...)
	}
	values.Set("offset", strconv.Itoa(p.Offset+p.Limit))

	u := p.base
	u.RawQuery = values.Encode()
	return u.String()
}

// Apply writes the pagination headers.
func (p Page) Apply(h http.Header) {
	h.Set(HeaderTotalCount, strconv.Itoa(p.Total))
	h.Set(HeaderLimit, strconv.Itoa(p.Limit))
	if next := p.NextLink(); next != "" {
		h.Set(HeaderLink, "<"+next+`>; rel="next"`)
	}
}
