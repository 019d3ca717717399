package preflight

import (
	"fmt"

	"jellyfin-migrator/feature/paths"

	"go.uber.org/multierr"
)

// Result represents the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks for a migration between roots.
// The disk space check is left out when skipDisk is set.
func RunAll(roots paths.Roots, skipDisk bool) []Result {
	results := []Result{
		CheckDirectoryAccess("Source root", roots.Source, false),
		CheckDirectoryAccess("Target root", roots.Target, true),
	}
	if !skipDisk {
		results = append(results, CheckDiskSpace(roots.Source, roots.Target))
	}
	return results
}

// Err combines the failed results, nil when every check passed.
func Err(results []Result) error {
	var err error
	for _, r := range results {
		if !r.Passed {
			err = multierr.Append(err, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	return err
}
