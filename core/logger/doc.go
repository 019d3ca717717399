// Package logger provides a structured logging facility based on Zap.
//
// The debug level selects zap's development configuration, every other level
// the production one. Entries are encoded as JSON or, on a terminal, as
// colored console lines; the "auto" format decides with go-isatty. A log file
// may be given to keep a copy of the run next to the checkpoint.
//
// # Run Correlation
//
// Every migration run has an identifier. WithRun attaches it as run_id so the
// lines of one run can be told apart in a file shared by several runs.
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	log = logger.WithRun(log, runID)
//	log.Info("migration started")
package logger
