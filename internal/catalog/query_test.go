package catalog

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/apperrors"
)

func TestBuildDefaults(t *testing.T) {
	p, err := Build(Query{})
	require.NoError(t, err)

	assert.Equal(t, []StageKind{StagePublished, StageSort, StageJoin, StagePaginate}, p.Kinds())
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, []any{10, 0}, p.Args)
	assert.Contains(t, p.Stages[1].SQL, "ORDER BY created_at DESC, id DESC")
	assert.Contains(t, p.Stages[0].SQL, "FROM videos WHERE is_published = TRUE")
}

func TestBuildFullPipelineOrder(t *testing.T) {
	owner := "0f8fad5b-d9cb-469f-a165-70867728950e"
	p, err := Build(Query{
		Text:     "cats",
		OwnerID:  owner,
		SortBy:   "views",
		SortType: "desc",
		Page:     2,
		Limit:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, []StageKind{StageText, StageOwner, StagePublished, StageSort, StageJoin, StagePaginate}, p.Kinds())
	assert.Equal(t, []any{"%cats%", owner, 5, 5}, p.Args)
	assert.Equal(t, 5, p.Offset())

	for i := 1; i < len(p.Stages); i++ {
		assert.Contains(t, p.Stages[i].SQL, "FROM "+p.Stages[i-1].Name, "stage %s must read from %s", p.Stages[i].Name, p.Stages[i-1].Name)
	}

	sql := p.SQL()
	assert.True(t, strings.HasPrefix(sql, "WITH s0_text AS (SELECT * FROM videos WHERE title ILIKE $1"))
	assert.Contains(t, sql, "ORDER BY views DESC, id DESC")
	assert.Contains(t, sql, "LIMIT $3 OFFSET $4")
	assert.Contains(t, sql, "(SELECT COUNT(*) FROM s2_published) AS total")
	assert.Less(t, strings.Index(sql, "s2_published AS"), strings.Index(sql, "s4_join AS"))
	assert.Less(t, strings.Index(sql, "s4_join AS"), strings.Index(sql, "s5_paginate AS"))
}

func TestBuildCatsByViews(t *testing.T) {
	p, err := Build(Query{Text: "cats", SortBy: "views", SortType: "desc", Page: 1, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, []StageKind{StageText, StagePublished, StageSort, StageJoin, StagePaginate}, p.Kinds())
	assert.Equal(t, []any{"%cats%", 10, 0}, p.Args)
	assert.Contains(t, p.SQL(), "ORDER BY views DESC")
}

func TestBuildEscapesLikeMetacharacters(t *testing.T) {
	p, err := Build(Query{Text: `100%_done\`})
	require.NoError(t, err)
	assert.Equal(t, `%100\%\_done\\%`, p.Args[0])
}

func TestBuildSortAscending(t *testing.T) {
	p, err := Build(Query{SortBy: "createdAt", SortType: "ASC"})
	require.NoError(t, err)
	assert.Contains(t, p.Stages[1].SQL, "ORDER BY created_at ASC, id ASC")
}

func TestBuildRejects(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{name: "malformed owner", query: Query{OwnerID: "not-a-uuid"}},
		{name: "unknown sort field", query: Query{SortBy: "password"}},
		{name: "unknown direction", query: Query{SortType: "sideways"}},
		{name: "negative page", query: Query{Page: -1}},
		{name: "limit too large", query: Query{Limit: MaxLimit + 1}},
		{name: "offset overflows", query: Query{Page: math.MaxInt / 5, Limit: 10}},
		{name: "max page", query: Query{Page: math.MaxInt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestPaginate(t *testing.T) {
	page, limit, err := Paginate(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultLimit, limit)
	assert.Equal(t, 0, Offset(page, limit))

	page, limit, err = Paginate(4, 25)
	require.NoError(t, err)
	assert.Equal(t, 75, Offset(page, limit))

	// The largest accepted page still yields a non-negative offset.
	last := math.MaxInt/MaxLimit + 1
	page, limit, err = Paginate(last, MaxLimit)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, Offset(page, limit), 0)

	_, _, err = Paginate(last+1, MaxLimit)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCountSQLDropsPagination(t *testing.T) {
	p, err := Build(Query{Text: "cats", Page: 3, Limit: 20})
	require.NoError(t, err)

	sql, args := p.CountSQL()
	assert.Equal(t, []any{"%cats%"}, args)
	assert.Contains(t, sql, "SELECT COUNT(*) FROM s1_published")
	assert.NotContains(t, sql, "LIMIT")
}
