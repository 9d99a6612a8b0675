// Package app provides the application service layer.
//
// The Refresher keeps each session's observation table fresh on a fixed interval and on demand.
// The Service handles the dashboard's UI events (filter change, manual refresh, data export)
// on top of it. Both depend on domain interfaces, not concrete adapters.
package app
