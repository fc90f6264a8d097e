// Package generator is the draft → generated capability: it drafts the
// display text, caption and hashtags for an item.
//
// Two backends exist. The template backend fills fixed per-kind copy and is
// the default. The llm backend asks a chat completion model for JSON copy
// under a tone contract. Either way the tag list is rebuilt from the catalog
// so every item carries the base, topic and kind tags.
package generator
