// Package domain holds the value types shared by every allocation stage:
// demand records, carriers, capacity tiers, the numbering sequence and the
// run-scoped bookkeeping (pending pool and processed set).
package domain
