package model

import (
	"errors"
	"fmt"
	"strings"
)

// Category is a topic grouping inside an assessment session.
type Category string

const (
	CategoryC Category = "C"
	CategoryR Category = "R"
	CategoryI Category = "I"
	CategoryS Category = "S"
	CategoryP Category = "P"
)

// DefaultCategoryOrder is the order categories are presented in unless configured otherwise.
var DefaultCategoryOrder = CategoryOrder{CategoryC, CategoryR, CategoryI, CategoryS, CategoryP}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryC, CategoryR, CategoryI, CategoryS, CategoryP:
		return true
	}
	return false
}

// ScoreKey is the key used for the category inside a category score map, e.g. "cScore".
func (c Category) ScoreKey() string {
	return strings.ToLower(string(c)) + "Score"
}

// CategoryOrder is the ordered list of categories a user walks through.
type CategoryOrder []Category

// ParseCategoryOrder parses a comma-separated list such as "C,R,I,S,P".
func ParseCategoryOrder(raw string) (CategoryOrder, error) {
	parts := strings.Split(raw, ",")
	order := make(CategoryOrder, 0, len(parts))
	seen := make(map[Category]bool, len(parts))
	for _, p := range parts {
		c := Category(strings.ToUpper(strings.TrimSpace(p)))
		if c == "" {
			continue
		}
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate category %q", c)
		}
		seen[c] = true
		order = append(order, c)
	}
	if len(order) == 0 {
		return nil, errors.New("category order is empty")
	}
	return order, nil
}

// IndexOf returns the position of c in the order, or -1.
func (o CategoryOrder) IndexOf(c Category) int {
	for i, x := range o {
		if x == c {
			return i
		}
	}
	return -1
}

// First returns the first category with a positive length, if any.
func (o CategoryOrder) First(lengths map[Category]int) (Category, bool) {
	for _, c := range o {
		if lengths[c] > 0 {
			return c, true
		}
	}
	return "", false
}

// NextAfter returns the first category after c with a positive length, if any.
func (o CategoryOrder) NextAfter(c Category, lengths map[Category]int) (Category, bool) {
	start := o.IndexOf(c)
	for i := start + 1; i < len(o); i++ {
		if lengths[o[i]] > 0 {
			return o[i], true
		}
	}
	return "", false
}
