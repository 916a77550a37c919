// Package planner turns a total quantity and a category into a capacity plan:
// how many carriers of each type a logistic group needs and how much each one
// may hold, based on the range-keyed tier table of the reference store.
package planner
