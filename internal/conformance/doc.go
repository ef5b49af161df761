// Package conformance replays generated traces against real runners.
//
// A YAML suite file binds a machine specification to runner
// construction parameters and fixtures. The harness dispatches each
// trace step through a registry built from that suite and accepts a
// step when the actual outcome matches any member of the step's
// modeled accept set; matching is on case and value, never
// diagnostics. Any divergence fails the run, and the report
// serializes to canonical JSON for CI.
package conformance
