// Package scheduler assigns planned publish timestamps to rendered items.
//
// Slots are one per calendar day at the configured hour and minute in the
// scheduler timezone. Assignment continues from the latest timestamp already
// stored, so publish order follows claim order and no two items share a day.
// Processes racing for the same slot are separated by the store's unique
// index on the planned timestamp; the loser sees queue.ErrSlotTaken and the
// item is picked up again by the next batch.
package scheduler
