package engine

import (
	"strings"
	"testing"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func step(id string, depends ...string) models.Step {
	return models.Step{ID: id, Tool: "noop", Depends: depends}
}

func TestTopoSortLinear(t *testing.T) {
	steps := []models.Step{step("A"), step("B", "A"), step("C", "B")}
	order, err := topoSort(steps)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	if strings.Join(order, ",") != "A,B,C" {
		t.Fatalf("order = %v", order)
	}
}

func TestTopoSortMissingDependency(t *testing.T) {
	steps := []models.Step{step("A", "ghost")}
	_, err := topoSort(steps)
	if err == nil || !strings.Contains(err.Error(), "Step dependency not found: ghost required by A") {
		t.Fatalf("err = %v", err)
	}
}

func TestTopoSortCycle(t *testing.T) {
	steps := []models.Step{step("A", "B"), step("B", "A")}
	_, err := topoSort(steps)
	if err == nil || !strings.Contains(err.Error(), "Circular dependency detected involving step:") {
		t.Fatalf("err = %v", err)
	}
}

func TestPartitionWavesParallel(t *testing.T) {
	steps := []models.Step{step("A"), step("B"), step("C", "A", "B")}
	order, err := topoSort(steps)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	waves, err := partitionWaves(steps, order)
	if err != nil {
		t.Fatalf("partitionWaves: %v", err)
	}
	if len(waves) != 2 {
		t.Fatalf("waves = %v", waves)
	}
	if len(waves[0]) != 2 {
		t.Fatalf("wave 0 = %v, want {A,B}", waves[0])
	}
	if len(waves[1]) != 1 || waves[1][0] != "C" {
		t.Fatalf("wave 1 = %v", waves[1])
	}
}

// partitionWaves is normally only called with a topoSort-validated step
// list; called directly against a cyclic set it reports the deadlock it
// would otherwise never observe.
func TestPartitionWavesDeadlock(t *testing.T) {
	steps := []models.Step{step("A", "B"), step("B", "A")}
	_, err := partitionWaves(steps, []string{"A", "B"})
	if err == nil || !strings.Contains(err.Error(), "Deadlock detected in workflow dependencies") {
		t.Fatalf("err = %v", err)
	}
}
