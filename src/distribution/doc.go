// Package distribution credits a fixed amount to every eligible personal
// account once per calendar day.
package distribution
