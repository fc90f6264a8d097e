// Package validator is the generated → validated capability: the content
// policy every item passes before it is rendered.
//
// Prohibited phrases from the catalog and empty copy reject the item, which
// the stage processor moves to the failed lane with the rejection reason.
// Everything else is auto-corrected in place (whitespace, replacement words,
// length limits, hashtag form and count, topic tags) and the corrections are
// recorded on the item and in its audit trail.
package validator
