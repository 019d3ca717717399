package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	r.StageStarted("PathMigration", 3)
	r.Advance("PathMigration", 1)
	r.Advance("PathMigration", 2)
	r.StageFinished("PathMigration")

	out := buf.String()
	assert.Contains(t, out, "PathMigration")
	assert.Contains(t, out, "3/3")
	assert.Nil(t, r.bar)
}

func TestReporter_EmptyStage(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	r.StageStarted("DateSync", 0)
	r.Advance("DateSync", 1)
	r.StageFinished("DateSync")

	assert.Empty(t, buf.String())
}

func TestReporter_Disabled(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false)

	r.StageStarted("PathMigration", 2)
	r.Advance("PathMigration", 2)
	r.StageFinished("PathMigration")

	assert.Empty(t, buf.String())
}
