// Package catalog compiles video catalog queries into an ordered SQL pipeline.
//
// Every stage becomes one common table expression reading from the previous
// one, so filtering always happens before the owner join and the join always
// happens before pagination.
package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperrors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// StageKind names a pipeline stage.
type StageKind string

const (
	StageText      StageKind = "text"
	StageOwner     StageKind = "owner"
	StagePublished StageKind = "published"
	StageSort      StageKind = "sort"
	StageJoin      StageKind = "join"
	StagePaginate  StageKind = "paginate"
)

var sortColumns = map[string]string{
	"createdat": "created_at",
	"views":     "views",
	"duration":  "duration",
	"title":     "title",
}

// Query is a caller's catalog request before validation.
type Query struct {
	Text     string
	OwnerID  string
	SortBy   string
	SortType string
	Page     int
	Limit    int
}

// Stage is one compiled step of the pipeline.
type Stage struct {
	Kind StageKind
	Name string
	SQL  string
}

// Pipeline is a validated, ordered list of stages with their bound arguments.
type Pipeline struct {
	Stages []Stage
	Args   []any
	Page   int
	Limit  int
}

// Kinds lists the stage kinds in execution order.
func (p Pipeline) Kinds() []StageKind {
	kinds := make([]StageKind, 0, len(p.Stages))
	for _, s := range p.Stages {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

// Offset is the number of rows skipped before the requested page.
func (p Pipeline) Offset() int {
	return Offset(p.Page, p.Limit)
}

// Offset is the number of rows skipped before page. Arguments must come from
// Paginate.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

type builder struct {
	stages []Stage
	args   []any
	source string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) add(kind StageKind, body string) {
	name := fmt.Sprintf("s%d_%s", len(b.stages), kind)
	b.stages = append(b.stages, Stage{Kind: kind, Name: name, SQL: body})
	b.source = name
}

// Build validates q and assembles the pipeline in its fixed order: text
// filter, owner filter, published filter, sort, owner join, paginate.
func Build(q Query) (Pipeline, error) {
	b := &builder{source: "videos"}

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := b.arg("%" + escapeLike(text) + "%")
		b.add(StageText, fmt.Sprintf(
			"SELECT * FROM %s WHERE title ILIKE %s ESCAPE '\\' OR description ILIKE %s ESCAPE '\\'",
			b.source, pattern, pattern,
		))
	}

	if owner := strings.TrimSpace(q.OwnerID); owner != "" {
		id, err := uuid.Parse(owner)
		if err != nil {
			return Pipeline{}, apperrors.InvalidInput("invalid user id")
		}
		b.add(StageOwner, fmt.Sprintf("SELECT * FROM %s WHERE owner_id = %s", b.source, b.arg(id.String())))
	}

	b.add(StagePublished, fmt.Sprintf("SELECT * FROM %s WHERE is_published = TRUE", b.source))

	column, direction, err := sortOrder(q.SortBy, q.SortType)
	if err != nil {
		return Pipeline{}, err
	}
	b.add(StageSort, fmt.Sprintf(
		"SELECT *, ROW_NUMBER() OVER (ORDER BY %s %s, id %s) AS position FROM %s",
		column, direction, direction, b.source,
	))

	b.add(StageJoin, fmt.Sprintf(
		"SELECT v.*, u.username AS owner_username, u.full_name AS owner_full_name, u.avatar AS owner_avatar "+
			"FROM %s v JOIN users u ON u.id = v.owner_id",
		b.source,
	))

	page, limit, err := Paginate(q.Page, q.Limit)
	if err != nil {
		return Pipeline{}, err
	}
	p := Pipeline{Page: page, Limit: limit}
	b.add(StagePaginate, fmt.Sprintf(
		"SELECT * FROM %s ORDER BY position LIMIT %s OFFSET %s",
		b.source, b.arg(limit), b.arg(p.Offset()),
	))

	p.Stages = b.stages
	p.Args = b.args
	return p, nil
}

// SQL renders the pipeline as a single statement. Each result row carries the
// total number of matches before pagination.
func (p Pipeline) SQL() string {
	var sb strings.Builder
	sb.WriteString("WITH ")
	for i, s := range p.Stages {
		if i > 0 {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(&sb, "%s AS (%s)", s.Name, s.SQL)
	}

	final := p.Stages[len(p.Stages)-1].Name
	counted := p.Stages[p.stageIndex(StagePublished)].Name
	fmt.Fprintf(&sb, `
SELECT id, owner_id, title, description, video_file, thumbnail, duration, views, is_published,
       created_at, updated_at, owner_username, owner_full_name, owner_avatar,
       (SELECT COUNT(*) FROM %s) AS total
FROM %s
ORDER BY position`, counted, final)
	return sb.String()
}

// CountSQL renders a statement returning only the number of matches, used
// when the requested page is past the end of the result set.
func (p Pipeline) CountSQL() (string, []any) {
	idx := p.stageIndex(StagePublished)
	var sb strings.Builder
	sb.WriteString("WITH ")
	for i, s := range p.Stages[:idx+1] {
		if i > 0 {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(&sb, "%s AS (%s)", s.Name, s.SQL)
	}
	fmt.Fprintf(&sb, "\nSELECT COUNT(*) FROM %s", p.Stages[idx].Name)

	// Pagination args are always the trailing two.
	return sb.String(), p.Args[:len(p.Args)-2]
}

func (p Pipeline) stageIndex(kind StageKind) int {
	for i, s := range p.Stages {
		if s.Kind == kind {
			return i
		}
	}
	return -1
}

func sortOrder(sortBy, sortType string) (string, string, error) {
	column := "created_at"
	if key := strings.ToLower(strings.TrimSpace(sortBy)); key != "" {
		c, ok := sortColumns[key]
		if !ok {
			return "", "", apperrors.InvalidInput(fmt.Sprintf("unsupported sortBy %q", sortBy))
		}
		column = c
	}

	switch strings.ToLower(strings.TrimSpace(sortType)) {
	case "", "desc":
		return column, "DESC", nil
	case "asc":
		return column, "ASC", nil
	default:
		return "", "", apperrors.InvalidInput(fmt.Sprintf("unsupported sortType %q", sortType))
	}
}

// Paginate applies the default page and limit to zero values and rejects
// pages whose offset would not fit in an int.
func Paginate(page, limit int) (int, int, error) {
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 {
		return 0, 0, apperrors.InvalidInput("page must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		return 0, 0, apperrors.InvalidInput(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, apperrors.InvalidInput("page is too large")
	}
	return page, limit, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
