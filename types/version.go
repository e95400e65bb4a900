package types

// Version is the canonical patchreview version.
// The CLI, the run report, and the log context all report this value.
const Version = "0.3.0"

// ReportVersion is stamped into every run report.
// It moves in lockstep with Version.
const ReportVersion = Version
