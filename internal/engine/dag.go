package engine

import (
	"fmt"

	"github.com/sidepanelai/agentcore/pkg/models"
)

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// topoSort orders steps so every dependency precedes its dependents, using a
// depth-first walk with a "visiting" set to detect cycles.
func topoSort(steps []models.Step) ([]string, error) {
	byID := make(map[string]*models.Step, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
	}
	for _, s := range steps {
		for _, dep := range s.Depends {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("Step dependency not found: %s required by %s", dep, s.ID)
			}
		}
	}

	state := make(map[string]visitState, len(steps))
	order := make([]string, 0, len(steps))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("Circular dependency detected involving step: %s", id)
		}
		state[id] = visiting
		for _, dep := range byID[id].Depends {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// partitionWaves groups a topologically sorted step list into waves: a step
// joins the earliest wave whose predecessors have all already been
// assigned. Waves run strictly in order; steps within a wave may run
// concurrently.
func partitionWaves(steps []models.Step, order []string) ([][]string, error) {
	byID := make(map[string]*models.Step, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
	}

	assigned := make(map[string]bool, len(order))
	var waves [][]string

	remaining := append([]string(nil), order...)
	for len(remaining) > 0 {
		var wave []string
		var next []string
		for _, id := range remaining {
			ready := true
			for _, dep := range byID[id].Depends {
				if !assigned[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, id)
			} else {
				next = append(next, id)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("Deadlock detected in workflow dependencies")
		}
		for _, id := range wave {
			assigned[id] = true
		}
		waves = append(waves, wave)
		remaining = next
	}
	return waves, nil
}
