package query

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"storefront/models"
)

// SearchFields are the product fields a keyword is matched against.
var SearchFields = []string{"name", "description"}

type SortField struct {
	Field string
	Desc  bool
}

// FindOptions carries the positional part of a catalog read.
type FindOptions struct {
	Skip  int64
	Limit int64
	Sort  []SortField
}

// Catalog is the product collection as the pipeline sees it.
type Catalog interface {
	Count(ctx context.Context, pred Predicate) (int64, error)
	Find(ctx context.Context, pred Predicate, opts FindOptions) ([]models.Product, error)
}

type Settings struct {
	PageSize int
	TopLimit int
}

// Pipeline runs product listings against a Catalog.
type Pipeline struct {
	catalog  Catalog
	settings Settings
}

func NewPipeline(catalog Catalog, settings Settings) *Pipeline {
	if settings.PageSize <= 0 {
		settings.PageSize = 8
	}
	if settings.TopLimit <= 0 {
		settings.TopLimit = 5
	}
	return &Pipeline{catalog: catalog, settings: settings}
}

func (p *Pipeline) PageSize() int { return p.settings.PageSize }

// New starts an unfiltered query on the first page.
func (p *Pipeline) New() *Query {
	return &Query{pipeline: p, page: 1}
}

// FromValues builds the query described by a listing request: keyword search,
// field filters and the page number.
func (p *Pipeline) FromValues(values url.Values) *Query {
	return p.New().
		Search(values.Get(ParamKeyword)).
		FilterValues(values).
		Paginate(ParsePage(values.Get(ParamPage)))
}

// Top returns the best rated products.
func (p *Pipeline) Top(ctx context.Context) ([]models.Product, error) {
	products, err := p.catalog.Find(ctx, Predicate{}, FindOptions{
		Limit: int64(p.settings.TopLimit),
		Sort:  []SortField{{Field: "ratings", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("find top products: %w", err)
	}
	return products, nil
}

// Query is an immutable listing request. Search and Filter add AND-ed
// clauses, so their order does not matter; the page is applied last.
type Query struct {
	pipeline *Pipeline
	pred     Predicate
	page     int
}

func (q *Query) with(pred Predicate) *Query {
	next := *q
	next.pred = q.pred.And(pred)
	return &next
}

// Search restricts results to products whose name or description contains
// keyword. A blank keyword leaves the query unchanged.
func (q *Query) Search(keyword string) *Query {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return q
	}
	return q.with(Predicate{Searches: []TextSearch{{Keyword: keyword, Fields: SearchFields}}})
}

func (q *Query) Filter(params map[string]any) *Query {
	return q.with(ParseFilters(params))
}

func (q *Query) FilterValues(values url.Values) *Query {
	return q.with(ParseValues(values))
}

// Paginate selects a 1-based page. Values below 1 select the first page.
func (q *Query) Paginate(page int) *Query {
	next := *q
	if page < 1 {
		page = 1
	}
	next.page = page
	return &next
}

func (q *Query) Predicate() Predicate { return q.pred }

func (q *Query) Page() int { return q.page }

// Window returns the skip and limit for the selected page. The skip
// saturates at math.MaxInt64, so a huge page reads past the end.
func (q *Query) Window() (skip, limit int64) {
	size := int64(q.pipeline.settings.PageSize)
	before := int64(q.page - 1)
	if size > 0 && before > math.MaxInt64/size {
		return math.MaxInt64, size
	}
	return size * before, size
}

type Result struct {
	Products              []models.Product `json:"products"`
	ProductsCount         int64            `json:"productsCount"`
	ResultPerPage         int              `json:"resultPerPage"`
	FilteredProductsCount int64            `json:"filteredProductsCount"`
}

// Execute counts the whole catalog, counts the matches of the query before
// pagination, and then reads the selected page. All three reads share the
// same predicate value.
func (q *Query) Execute(ctx context.Context) (*Result, error) {
	total, err := q.pipeline.catalog.Count(ctx, Predicate{})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	filtered, err := q.pipeline.catalog.Count(ctx, q.pred)
	if err != nil {
		return nil, fmt.Errorf("count filtered products: %w", err)
	}

	skip, limit := q.Window()
	products, err := q.pipeline.catalog.Find(ctx, q.pred, FindOptions{
		Skip:  skip,
		Limit: limit,
		Sort:  []SortField{{Field: "_id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	return &Result{
		Products:              products,
		ProductsCount:         total,
		ResultPerPage:         q.pipeline.settings.PageSize,
		FilteredProductsCount: filtered,
	}, nil
}

// ParsePage reads the page parameter, defaulting to 1 when it is missing,
// not an integer, or below 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
