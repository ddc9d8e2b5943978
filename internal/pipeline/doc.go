// Package pipeline provides the step framework the conversion stages
// run under: the Step interface, per-run state with step tracking, a
// strictly sequential Runner, and a Manager that owns concurrent runs
// for the HTTP service. The pipeline inside one run is single-threaded;
// concurrency exists only between independent runs.
package pipeline
