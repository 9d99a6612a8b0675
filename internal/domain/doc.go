// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (country.go, indicator.go, observation.go, filter.go, figure.go, store.go)
// hold the shared types and the contracts implemented by adapters. No I/O lives here; the only
// behaviour is validation and the flat-record encoding of observation rows.
package domain
