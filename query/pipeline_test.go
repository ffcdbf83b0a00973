package query_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/database/mocks"
	"storefront/models"
	"storefront/query"
)

func newTestPipeline(n int) (*query.Pipeline, *mocks.ProductStore) {
	store := mocks.NewProductStore()
	for i := 1; i <= n; i++ {
		category := "Books"
		if i%3 == 0 {
			category = "Laptops"
		}
		store.Seed(models.Product{
			Name:     fmt.Sprintf("Item %d", i),
			Price:    float64(i * 10),
			Category: category,
			Ratings:  float64(i % 6),
		})
	}
	return query.NewPipeline(store, query.Settings{}), store
}

func TestNewPipeline_Defaults(t *testing.T) {
	p, _ := newTestPipeline(0)
	assert.Equal(t, 8, p.PageSize())
}

func TestQuery_Execute_CountsAndPage(t *testing.T) {
	p, store := newTestPipeline(12)

	res, err := p.New().Filter(map[string]any{"category": "Books"}).Paginate(1).Execute(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 12, res.ProductsCount)
	assert.EqualValues(t, 8, res.FilteredProductsCount)
	assert.Equal(t, 8, res.ResultPerPage)
	assert.Len(t, res.Products, 8)

	require.Len(t, store.CountCalls, 2)
	assert.True(t, store.CountCalls[0].IsEmpty(), "total count is unfiltered")
	assert.False(t, store.CountCalls[1].IsEmpty())
	require.Len(t, store.FindCalls, 1)
	assert.Equal(t, query.FindOptions{
		Skip:  0,
		Limit: 8,
		Sort:  []query.SortField{{Field: "_id"}},
	}, store.FindCalls[0])
}

func TestQuery_Execute_PagesAreDisjoint(t *testing.T) {
	p, _ := newTestPipeline(20)

	seen := map[string]int{}
	for page := 1; page <= 3; page++ {
		res, err := p.New().Paginate(page).Execute(context.Background())
		require.NoError(t, err)
		for _, prod := range res.Products {
			seen[prod.Name]++
		}
	}
	assert.Len(t, seen, 20)
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}

func TestQuery_Execute_PastLastPage(t *testing.T) {
	p, _ := newTestPipeline(5)

	res, err := p.New().Paginate(4).Execute(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res.Products)
	assert.Empty(t, res.Products)
	assert.EqualValues(t, 5, res.ProductsCount)
}

func TestQuery_StageOrderDoesNotMatter(t *testing.T) {
	p, _ := newTestPipeline(30)
	ctx := context.Background()

	a, err := p.New().Search("item 1").Filter(map[string]any{"price[gte]": "120"}).Paginate(1).Execute(ctx)
	require.NoError(t, err)
	b, err := p.New().Paginate(1).Filter(map[string]any{"price[gte]": "120"}).Search("item 1").Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, a.FilteredProductsCount, b.FilteredProductsCount)
	assert.Equal(t, a.Products, b.Products)
	// Item 12..19
	assert.EqualValues(t, 8, a.FilteredProductsCount)
}

func TestQuery_IsImmutable(t *testing.T) {
	p, _ := newTestPipeline(0)

	base := p.New()
	filtered := base.Filter(map[string]any{"category": "Books"})
	paged := base.Paginate(3)

	assert.True(t, base.Predicate().IsEmpty())
	assert.Equal(t, 1, base.Page())
	assert.False(t, filtered.Predicate().IsEmpty())
	assert.Equal(t, 3, paged.Page())
}

func TestQuery_Window(t *testing.T) {
	p, _ := newTestPipeline(0)

	skip, limit := p.New().Paginate(3).Window()
	assert.EqualValues(t, 16, skip)
	assert.EqualValues(t, 8, limit)

	skip, _ = p.New().Paginate(-4).Window()
	assert.EqualValues(t, 0, skip)

	skip, limit = p.New().Paginate(math.MaxInt).Window()
	assert.EqualValues(t, int64(math.MaxInt64), skip)
	assert.EqualValues(t, 8, limit)
}

func TestQuery_Execute_HugePageIsEmpty(t *testing.T) {
	p, _ := newTestPipeline(12)

	q := p.FromValues(url.Values{"page": {"1152921504606846977"}})
	skip, _ := q.Window()
	assert.Positive(t, skip)

	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.EqualValues(t, 12, res.FilteredProductsCount)
}

func TestPipeline_FromValues(t *testing.T) {
	p, _ := newTestPipeline(12)

	q := p.FromValues(url.Values{
		"keyword":  {"  item  "},
		"category": {"Laptops"},
		"page":     {"abc"},
	})
	assert.Equal(t, 1, q.Page())
	require.Len(t, q.Predicate().Searches, 1)
	assert.Equal(t, "item", q.Predicate().Searches[0].Keyword)

	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.FilteredProductsCount)
}

func TestQuery_Search_BlankKeyword(t *testing.T) {
	p, _ := newTestPipeline(0)
	assert.True(t, p.New().Search("   ").Predicate().IsEmpty())
}

func TestPipeline_Top(t *testing.T) {
	p, store := newTestPipeline(12)

	top, err := p.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 5)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Ratings, top[i].Ratings)
	}
	assert.Equal(t, 5.0, top[0].Ratings)
	require.Len(t, store.FindCalls, 1)
	assert.EqualValues(t, 5, store.FindCalls[0].Limit)
}

func TestQuery_Execute_StoreError(t *testing.T) {
	p, store := newTestPipeline(3)
	store.Err = errors.New("no reachable servers")

	_, err := p.New().Execute(context.Background())
	assert.ErrorContains(t, err, "no reachable servers")
}

func TestParsePage(t *testing.T) {
	tests := map[string]int{
		"":    1,
		"1":   1,
		"7":   7,
		" 2 ": 2,
		"0":   1,
		"-3":  1,
		"x":   1,
		"2.5": 1,
	}
	for raw, want := range tests {
		assert.Equal(t, want, query.ParsePage(raw), raw)
	}
}

func TestQuery_FilteredCountMatchesAllPages(t *testing.T) {
	p, _ := newTestPipeline(40)
	ctx := context.Background()
	params := map[string]any{"price[gte]": "55", "price[lte]": "325"}

	first, err := p.New().Filter(params).Execute(ctx)
	require.NoError(t, err)

	var all []models.Product
	for page := 1; ; page++ {
		res, err := p.New().Filter(params).Paginate(page).Execute(ctx)
		require.NoError(t, err)
		if len(res.Products) == 0 {
			break
		}
		all = append(all, res.Products...)
	}

	assert.EqualValues(t, len(all), first.FilteredProductsCount)
	assert.Len(t, all, 27)
	for _, prod := range all {
		assert.GreaterOrEqual(t, prod.Price, 55.0)
		assert.LessOrEqual(t, prod.Price, 325.0)
	}
}
