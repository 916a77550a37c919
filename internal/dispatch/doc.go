// Package dispatch runs one allocation: it parses order lines, walks the
// logistic groups in input order and drives the planner, distributor and
// placement engine for each group before committing the numbering sequence.
package dispatch
