// Package mahala assembles a complete node from a config.Config: key, ledger
// store, overlay, validator selection, daily distribution and status service.
package mahala
