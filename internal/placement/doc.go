// Package placement fills the carriers of a logistic group with pending
// demand. Records that fit are placed whole; records that do not fit are split
// proportionally to the remaining capacity and stay in the pool for the next
// carrier. Channel-specific policies decide grouping and order.
package placement
