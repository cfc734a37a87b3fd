// Package config defines the configuration of a mahala node.
//
// The command line tool fills a Config from flags, from a mahala.toml file in
// the data directory, and from the defaults defined here.
package config
