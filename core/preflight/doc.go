// Package preflight holds the checks run before a migration touches the
// target: directory access and a free space estimate for the target root.
package preflight
