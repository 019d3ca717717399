package migration

// Progress receives stage progress. Implementations must be safe for
// concurrent use.
type Progress interface {
	StageStarted(stage string, total int)
	Advance(stage string, n int)
	StageFinished(stage string)
}

type nopProgress struct{}

func (nopProgress) StageStarted(string, int) {}
func (nopProgress) Advance(string, int)      {}
func (nopProgress) StageFinished(string)     {}
