// Package merge applies row change events to in-memory slices.
//
// Inserts append without a duplicate check, updates replace the element with
// the same key and deletes remove it. Updates and deletes of absent keys leave
// the slice unchanged.
package merge

import (
	"sort"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// Keyed is a row with a primary key
type Keyed interface {
	Key() uint
}

// Insert appends item
func Insert[T Keyed](items []T, item T) []T {
	return append(items, item)
}

// Update replaces the element with item's key. It reports whether one was found.
func Update[T Keyed](items []T, item T) ([]T, bool) {
	for i := range items {
		if items[i].Key() == item.Key() {
			items[i] = item
			return items, true
		}
	}
	return items, false
}

// Delete removes the element with key. It reports whether one was found.
func Delete[T Keyed](items []T, key uint) ([]T, bool) {
	for i := range items {
		if items[i].Key() == key {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

// Upsert replaces the element with item's key or appends item
func Upsert[T Keyed](items []T, item T) []T {
	if out, ok := Update(items, item); ok {
		return out
	}
	return append(items, item)
}

// Apply merges one change into items
func Apply[T Keyed](items []T, action changefeed.Action, newRow, oldRow T) []T {
	switch action {
	case changefeed.ActionInsert:
		return Insert(items, newRow)
	case changefeed.ActionUpdate:
		out, _ := Update(items, newRow)
		return out
	case changefeed.ActionDelete:
		out, _ := Delete(items, oldRow.Key())
		return out
	}
	return items
}

// Clone returns a copy that shares no backing array with items
func Clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	return append(make([]T, 0, len(items)), items...)
}

// SortLinks orders links by position, then id
func SortLinks(links []models.Link) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Position != links[j].Position {
			return links[i].Position < links[j].Position
		}
		return links[i].ID < links[j].ID
	})
}

// ActiveLinks returns the active links ordered by position
func ActiveLinks(links []models.Link) []models.Link {
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if l.IsActive {
			out = append(out, l)
		}
	}
	SortLinks(out)
	return out
}

// ActiveProducts returns the products on sale
func ActiveProducts(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}
