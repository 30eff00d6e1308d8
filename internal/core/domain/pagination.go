package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination est l'état de pagination offset-based partagé par toutes les listes.
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination borne page >= 1 et limit dans [1, MaxPageLimit].
// Une valeur nulle prend le défaut (page 1, limit 10).
func NewPagination(page, limit int) Pagination {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	return Pagination{
		Page:  max(1, page),
		Limit: min(MaxPageLimit, max(1, limit)),
	}
}

// Offset pour la clause SQL OFFSET / SKIP Cypher.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page est le résultat paginé renvoyé aux adapters primaires.
type Page[T any] struct {
	Data       []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPage calcule totalPages, hasNext et hasPrev à partir du total.
func NewPage[T any](data []T, total int, p Pagination) Page[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// EmptyPage est la page renvoyée en mode dégradé.
func EmptyPage[T any](p Pagination) Page[T] {
	return NewPage[T](nil, 0, p)
}
