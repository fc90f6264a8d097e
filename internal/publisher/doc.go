// Package publisher moves due scheduled items to published.
//
// Items are claimed with ClaimDue, so an item whose planned timestamp is
// still in the future is never touched. Two backends exist: the outbox
// writes <outbox_dir>/post_<id>.json and treats an existing document as an
// earlier success, and the graph backend performs the two-step Instagram
// Graph API publish. The publish time comes from the injected clock.
package publisher
