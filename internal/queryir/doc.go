// Package queryir is the structured expression tree the narrow compiler
// builds and the querysql package lowers to SQL.
//
// The tree has three sealed interfaces:
//
//	Value      scalar expressions (columns, literals, bit masks, functions)
//	Predicate  boolean expressions (comparisons, IN, LIKE, EXISTS, AND/OR/NOT)
//	Query      row sources (Select, Page)
//
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case And:
//	...
//	}
//
// A Select only ever grows by appending Where conjuncts and read-only
// Columns. CheckNarrowing verifies that shape, which is what makes the
// narrowing property of the compiler checkable without a database.
//
// Literal values are never rendered inline by backends; they become bound
// parameters.
package queryir
