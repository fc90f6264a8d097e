// Package renderer composes the portrait feed image for a validated item.
//
// The canvas is filled with the background palette color, overlaid with
// translucent ellipses seeded by the item id, and the display text is drawn
// centered in the primary color. When paths.logo_path points at a readable
// image it is scaled and placed in the bottom-right corner. Output lands in
// <render_dir>/post_<id>.png and the absolute path becomes the item's asset
// reference.
package renderer
