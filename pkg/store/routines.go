package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// routineFile is the YAML schema of a routine file: named procedures,
// each a list of steps. A step with a select query is an iterative
// update (the update is a {{var}} template); without one it is a plain
// update.
//
//	procedures:
//	  drop_orphans:
//	    steps:
//	      - select: "SELECT ?s WHERE { ... }"
//	        update: "DELETE WHERE { {{s}} ?p ?o . }"
//	      - update: "DELETE DATA { ... }"
type routineFile struct {
	Procedures map[string]routineProcedure `yaml:"procedures"`
}

type routineProcedure struct {
	Steps []routineStep `yaml:"steps"`
}

type routineStep struct {
	Select string `yaml:"select"`
	Update string `yaml:"update"`
}

// RunRoutine executes a named procedure from a routine file and logs a
// file::procedure reference, so replay re-runs the routine rather than
// the concrete updates it generated.
func (s *Store) RunRoutine(ctx context.Context, file, procedure string) error {
	if err := s.runRoutine(ctx, file, procedure); err != nil {
		return err
	}
	return s.log.AppendRoutine(file, procedure)
}

func (s *Store) runRoutine(ctx context.Context, file, procedure string) error {
	path := file
	if s.routinesDir != "" && !filepath.IsAbs(file) {
		path = filepath.Join(s.routinesDir, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: reading routine file %s: %w", path, err)
	}
	var rf routineFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("store: parsing routine file %s: %w", path, err)
	}
	proc, ok := rf.Procedures[procedure]
	if !ok {
		return fmt.Errorf("store: routine %s has no procedure %q", path, procedure)
	}

	for i, step := range proc.Steps {
		if step.Update == "" {
			return fmt.Errorf("store: %s::%s step %d has no update", file, procedure, i)
		}
		if step.Select == "" {
			if _, err := s.applyUpdate(ctx, step.Update); err != nil {
				return fmt.Errorf("store: %s::%s step %d: %w", file, procedure, i, err)
			}
			continue
		}
		rows, err := s.Query(ctx, step.Select)
		if err != nil {
			return fmt.Errorf("store: %s::%s step %d: %w", file, procedure, i, err)
		}
		for _, row := range rows {
			if _, err := s.applyUpdate(ctx, instantiate(step.Update, row)); err != nil {
				return fmt.Errorf("store: %s::%s step %d: %w", file, procedure, i, err)
			}
		}
	}
	return nil
}

// replayExecutor adapts the store to history.Replay: replayed
// mutations must not be re-logged.
type replayExecutor struct {
	ctx   context.Context
	store *Store
}

func (r replayExecutor) ApplyUpdate(update string) error {
	_, err := r.store.applyUpdate(r.ctx, update)
	return err
}

func (r replayExecutor) RunRoutine(file, procedure string) error {
	return r.store.runRoutine(r.ctx, file, procedure)
}
