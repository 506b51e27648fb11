//go:build cgo_sqlite

// The cgo oracle uses mattn/go-sqlite3.
//
// Run with: go test -tags cgo_sqlite ./table
// Requires: CGO_ENABLED=1
package table

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)
