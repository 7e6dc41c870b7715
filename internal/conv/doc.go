// Package conv provides checked integer conversions for values that end up
// in, or come from, table indexes.
package conv
