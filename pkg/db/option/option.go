package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption decorates a query built by the generic repository.
type QueryOption func(*gorm.DB) *gorm.DB

type OrderBy string

const (
	ASC  OrderBy = "ASC"
	DESC OrderBy = "DESC"
)

type QuerySortBy struct {
	Field   string
	OrderBy OrderBy
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		order := s.OrderBy
		if order != DESC {
			order = ASC
		}
		return db.Order(fmt.Sprintf("%s %s", s.Field, order))
	}
}

func WithWhere(query string, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}

func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}
