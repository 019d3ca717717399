package checkpoint

import "fmt"

// Stage is a pipeline stage.
type Stage string

const (
	StagePathMigration    Stage = "PathMigration"
	StageIdPathRenaming   Stage = "IdPathRenaming"
	StageDatabaseIdUpdate Stage = "DatabaseIdUpdate"
	StageDateSync         Stage = "DateSync"
	StageDone             Stage = "Done"
)

// Stages lists the working stages in execution order.
var Stages = []Stage{StagePathMigration, StageIdPathRenaming, StageDatabaseIdUpdate, StageDateSync}

// Index returns the position of s in the pipeline, len(Stages) for Done and -1 when unknown.
func (s Stage) Index() int {
	if s == StageDone {
		return len(Stages)
	}
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i+1 >= len(Stages) {
		return StageDone
	}
	return Stages[i+1]
}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if s.Index() < 0 {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}
