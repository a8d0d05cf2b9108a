// Package dedup groups listings that advertise the same physical unit.
//
// Resolution runs in three phases and never modifies its input:
//
//  1. Blocking: each listing joins the block of its compacted address prefix
//     and, when it has coordinates, the block of its geohash cell.
//  2. Clustering: every block is clustered on its own with union-find over
//     all pairs scoring at or above the threshold. Blocks run in parallel.
//     The per-block clusters are then merged and pairs straddling two
//     neighbouring geohash cells are compared in a single boundary pass.
//  3. Selection: one canonical listing is chosen per cluster by
//     completeness, then by earliest collection time.
//
// Two listings are compared when they share an address block, a geohash
// cell, or a pair of neighbouring cells. All other pairs are never compared.
package dedup
