// Package catalog loads the editorial vocabulary: which kinds rotate through
// the calendar and how often, the zodiac signs and themes topics are drawn
// from, the base hashtags every caption carries, and the phrase policy the
// validator enforces.
//
// The catalog is YAML. An embedded default ships with the binary; setting
// paths.catalog_path replaces it wholesale.
package catalog
