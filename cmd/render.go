package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/core/preflight"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/migration"
	"jellyfin-migrator/feature/scanner"

	"github.com/dustin/go-humanize"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func renderSummary(s *migration.Summary) string {
	headers := []string{"Stage", "Items", "Done", "Skipped", "Failed", "Copied", "Rewritten", "Renamed", "Rows", "Unmapped", "Duplicates", "Unresolved", "Duration"}
	aligns := []columnAlignment{alignLeft}
	for range headers[1:] {
		aligns = append(aligns, alignRight)
	}

	var rows [][]string
	for _, st := range s.Skipped {
		row := []string{string(st)}
		for range headers[1 : len(headers)-1] {
			row = append(row, "-")
		}
		rows = append(rows, append(row, "earlier run"))
	}
	for _, r := range s.Reports {
		rows = append(rows, []string{
			string(r.Stage),
			itoa(r.Items),
			itoa(r.Done),
			itoa(r.Skipped),
			itoa(r.Failed),
			fmt.Sprintf("%d (%s)", r.Copied, humanize.IBytes(uint64(r.Bytes))),
			itoa(r.Rewritten),
			itoa(r.Renamed),
			itoa(r.Database.Updated),
			itoa(r.Database.Unmapped),
			itoa(r.Database.DuplicatesRemoved),
			itoa(countUnresolved(r.Paths.Errors) + countUnresolved(r.Database.Paths.Errors)),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(headers, rows, aligns)
}

func countUnresolved(errs []error) int {
	n := 0
	for _, err := range errs {
		if errors.Is(err, migerr.ErrPathUnresolved) {
			n++
		}
	}
	return n
}

func renderPlan(p *migration.Plan) string {
	headers := []string{"Stage", "Items", "Done", "State"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(p.Stages))
	for _, sp := range p.Stages {
		state := "pending"
		if sp.Complete {
			state = "complete"
		}
		rows = append(rows, []string{string(sp.Stage), itoa(sp.Items), itoa(sp.Done), state})
	}
	return renderTable(headers, rows, aligns)
}

func renderPreflight(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	return renderTable([]string{"Check", "Status", "Detail"}, rows, nil)
}

func renderState(st *checkpoint.State, fingerprint string) string {
	match := "yes"
	if st.ConfigFingerprint != fingerprint {
		match = "no (reset required)"
	}
	completed := make([]string, 0, len(st.CompletedStages))
	for _, s := range st.CompletedStages {
		completed = append(completed, string(s))
	}
	if len(completed) == 0 {
		completed = append(completed, "none")
	}

	rows := [][]string{
		{"Run", st.RunID},
		{"Created", st.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Updated", humanize.Time(st.UpdatedAt)},
		{"Current stage", string(st.CurrentStage)},
		{"Completed stages", strings.Join(completed, ", ")},
		{"Registry", humanize.Comma(int64(len(st.Registry))) + " identifiers"},
		{"Configuration matches", match},
	}
	for _, s := range checkpoint.Stages {
		prefix := checkpoint.FileKey(s, "")
		n := 0
		for _, k := range st.CompletedItems {
			if strings.HasPrefix(k, prefix) && !strings.HasSuffix(k, ":copied") {
				n++
			}
		}
		rows = append(rows, []string{string(s) + " items", humanize.Comma(int64(n))})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func renderFindings(findings []scanner.Finding) string {
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{f.Table, f.Column, strings.Join(f.Encodings, ", "), itoa(f.Rows)})
	}
	return renderTable([]string{"Table", "Column", "Encodings", "Values"},
		rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}
