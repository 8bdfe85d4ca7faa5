package pipeline

import (
	"context"
	"fmt"

	"github.com/beacon-epi/empdep/internal/report"
)

// Tables computes the cohort descriptive tables without recording a run in
// the state store. With persistence enabled the cohort is read back from the
// persisted analytic table; otherwise it is rebuilt from the raw extracts.
func (e *Engine) Tables(ctx context.Context) ([]report.Table, error) {
	var stages []stage
	if e.cfg.Persist {
		stages = []stage{{name: StageLoadAnalytic, fn: e.loadAnalytic}}
	} else {
		stages = e.cohortStages()
	}
	stages = append(stages, stage{name: StageDescriptives, fn: e.describeCohort})

	st := &runState{}
	for _, s := range stages {
		if _, err := s.fn(ctx, st); err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.name, err)
		}
	}
	return st.tables, nil
}
