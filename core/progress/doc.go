// Package progress renders stage progress as terminal progress bars.
//
// A Reporter created for a writer that is not a terminal renders nothing, so
// logs written to files or pipes stay clean.
package progress
