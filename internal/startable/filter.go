package startable

import "slices"

// Filter decides whether a span is fully decoded. It is called at most once per
// span, with the block type and the name from the marker row; it never sees cell
// data. Metadata spans are offered with an empty name.
type Filter func(t BlockType, name string) bool

// TablesNamed accepts tables with one of the given names and every non-table block.
func TablesNamed(names ...string) Filter {
	return func(t BlockType, name string) bool {
		return t != BlockTable || slices.Contains(names, name)
	}
}

// OnlyTypes accepts blocks of the given types.
func OnlyTypes(types ...BlockType) Filter {
	return func(t BlockType, _ string) bool {
		return slices.Contains(types, t)
	}
}

// AllOf accepts a span when every filter does.
func AllOf(filters ...Filter) Filter {
	return func(t BlockType, name string) bool {
		for _, f := range filters {
			if f != nil && !f(t, name) {
				return false
			}
		}
		return true
	}
}

// AnyOf accepts a span when at least one filter does.
func AnyOf(filters ...Filter) Filter {
	return func(t BlockType, name string) bool {
		for _, f := range filters {
			if f != nil && f(t, name) {
				return true
			}
		}
		return false
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(t BlockType, name string) bool {
		return !f(t, name)
	}
}
