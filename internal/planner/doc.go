// Package planner fills the editorial calendar. Each calendar day gets one
// draft whose kind follows the catalog rotation and whose sign or theme
// follows its own independent rotation. Both are pure functions of the
// day, so rerunning the planner over an overlapping window never creates a
// second draft for a day and never reshuffles the days already planned.
package planner
