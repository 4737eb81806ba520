package collector

import (
	"context"
	"io"
	"net/url"
	"strconv"
)

// Paging is the API's paging block.
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Item is one search result.
type Item struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CategoryID string `json:"category_id"`
}

// APIReview is one review as returned by the reviews endpoint.
type APIReview struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Rate     float64 `json:"rate"`
	Likes    int     `json:"likes"`
	Dislikes int     `json:"dislikes"`
}

// Page is one page of either endpoint. Only the fields of the endpoint that
// produced it are set.
type Page struct {
	Index   int         `json:"-"`
	Paging  *Paging     `json:"paging"`
	Results []Item      `json:"results"`
	Reviews []APIReview `json:"reviews"`
}

// Pager lazily walks the pages of one resource. The first call to Next
// fetches offset 0; later calls follow paging.total and paging.limit. A
// response without a paging block is a single page. Next returns io.EOF
// after the last page; Reset starts over.
type Pager struct {
	client      *Client
	resource    string
	subresource string
	params      url.Values
	limit       int

	step  int
	next  int
	pages int
}

func (c *Client) NewPager(resource, subresource string, params url.Values, limit int) *Pager {
	p := &Pager{
		client:      c,
		resource:    resource,
		subresource: subresource,
		params:      url.Values{},
		limit:       limit,
	}
	for k, v := range params {
		p.params[k] = append([]string(nil), v...)
	}
	p.Reset()
	return p
}

// Next fetches the next page.
func (p *Pager) Next(ctx context.Context) (Page, error) {
	if p.next >= p.pages {
		return Page{}, io.EOF
	}
	params := url.Values{}
	for k, v := range p.params {
		params[k] = v
	}
	params.Set("limit", strconv.Itoa(p.limit))
	if p.next > 0 {
		params.Set("offset", strconv.Itoa(p.next*p.step))
	}

	var page Page
	if err := p.client.GetJSON(ctx, p.resource, p.subresource, params, &page); err != nil {
		return Page{}, err
	}
	page.Index = p.next
	if p.next == 0 && page.Paging != nil && page.Paging.Limit > 0 {
		p.step = page.Paging.Limit
		p.pages = (page.Paging.Total + p.step - 1) / p.step
	}
	p.next++
	return page, nil
}

// Reset rewinds the pager so the next call fetches the first page again.
func (p *Pager) Reset() {
	p.next = 0
	p.pages = 1
	p.step = p.limit
}
