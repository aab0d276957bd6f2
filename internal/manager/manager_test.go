package manager

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/fieldsim/internal/field"
)

type eval2 struct {
	fn func(tm, x float64) float64
}

func (e eval2) Arity() int { return 2 }

func (e eval2) Eval(args ...float64) (float64, error) {
	return e.fn(args[0], args[1]), nil
}

func analytic(t *testing.T, fn func(tm, x float64) float64, nodeCount int) *field.Analytic {
	t.Helper()
	m, err := field.NewAnalytic(eval2{fn}, 1, nodeCount, 0.1)
	if err != nil {
		t.Fatalf("NewAnalytic: %v", err)
	}
	return m
}

func findModel(snap Snapshot, name string) (ModelInfo, bool) {
	for _, info := range snap.Models {
		if info.Name == name {
			return info, true
		}
	}
	return ModelInfo{}, false
}

func TestManagerIdenticalModelsStayAtZeroDivergence(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	f := func(tm, x float64) float64 { return x }
	mgr.AddModel("A", analytic(t, f, 5))
	mgr.AddModel("B", analytic(t, f, 5))
	mgr.StartComparison("A", "B")

	for i := 0; i < 5; i++ {
		snap := mgr.Snapshot()
		a, ok := findModel(snap, "A")
		if !ok {
			t.Fatal("model A missing from snapshot")
		}
		b, _ := findModel(snap, "B")
		if d, ok := a.Comparisons["B"]; !ok || d != 0 {
			t.Errorf("snapshot %d: divergence(A,B) = %v, want 0", i, d)
		}
		if d := b.Comparisons["A"]; d != 0 {
			t.Errorf("snapshot %d: divergence(B,A) = %v, want 0", i, d)
		}
		if len(snap.Faults) != 0 {
			t.Errorf("snapshot %d: unexpected faults %v", i, snap.Faults)
		}
	}
}

func TestManagerDivergenceGrowsForDifferingModels(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	mgr.AddModel("slow", analytic(t, func(tm, x float64) float64 { return tm }, 5))
	mgr.AddModel("fast", analytic(t, func(tm, x float64) float64 { return 2 * tm }, 5))
	mgr.StartComparison("slow", "fast")

	snap := mgr.Snapshot()
	info, ok := findModel(snap, "slow")
	if !ok {
		t.Fatal("model missing from snapshot")
	}
	first := info.Comparisons["fast"]
	if first <= 0 {
		t.Fatalf("divergence after first tick = %v, want > 0", first)
	}

	snap = mgr.Snapshot()
	info, _ = findModel(snap, "slow")
	if later := info.Comparisons["fast"]; later <= first {
		t.Errorf("divergence did not grow: %v then %v", first, later)
	}
}

func TestManagerStartComparisonResetsEndpoints(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	// f(t,x)=t makes every node equal the model's elapsed time, so the node
	// values read out how far a model has advanced.
	f := func(tm, x float64) float64 { return tm }
	mgr.AddModel("A", analytic(t, f, 5))
	mgr.AddModel("B", analytic(t, f, 5))

	time.Sleep(300 * time.Millisecond)
	snap := mgr.Snapshot()
	info, ok := findModel(snap, "A")
	if !ok {
		t.Fatal("model A missing from snapshot")
	}
	before := info.Nodes[0]
	if before < 1 {
		t.Fatalf("model barely advanced before comparison: %v", before)
	}

	mgr.StartComparison("A", "B")
	snap = mgr.Snapshot()
	for _, name := range []string{"A", "B"} {
		info, ok := findModel(snap, name)
		if !ok {
			t.Fatalf("model %s missing from snapshot", name)
		}
		after := info.Nodes[0]
		if after >= before/2 || after > 1 {
			t.Errorf("model %s not restarted by comparison: %v then %v", name, before, after)
		}
	}
}

func TestManagerSnapshotCopiesNodes(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return x }, 5))

	snap := mgr.Snapshot()
	info, ok := findModel(snap, "A")
	if !ok {
		t.Fatal("model A missing from snapshot")
	}
	if len(info.Nodes) != 5 {
		t.Fatalf("snapshot has %d nodes, want 5", len(info.Nodes))
	}
	for i, v := range info.Nodes {
		want := float64(i) * 0.25
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("nodes[%d] = %v, want %v", i, v, want)
		}
	}
	if info.Length != 1 {
		t.Errorf("length = %v, want 1", info.Length)
	}
}

func TestManagerAddModelKeepsExistingOnCollision(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return 1 }, 5))
	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return 2 }, 9))

	snap := mgr.Snapshot()
	if len(snap.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(snap.Models))
	}
	if got := len(snap.Models[0].Nodes); got != 5 {
		t.Errorf("collision replaced the registered model: %d nodes, want 5", got)
	}
}

func TestManagerStopComparisonRemovesEdge(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	f := func(tm, x float64) float64 { return x }
	mgr.AddModel("A", analytic(t, f, 5))
	mgr.AddModel("B", analytic(t, f, 5))
	mgr.StartComparison("A", "B")
	mgr.StopComparison("B", "A")

	snap := mgr.Snapshot()
	for _, info := range snap.Models {
		if len(info.Comparisons) != 0 {
			t.Errorf("model %s still has comparisons %v", info.Name, info.Comparisons)
		}
	}
}

func TestManagerRemoveModelCascades(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	f := func(tm, x float64) float64 { return x }
	for _, name := range []string{"A", "B", "C"} {
		mgr.AddModel(name, analytic(t, f, 5))
	}
	mgr.StartComparison("A", "B")
	mgr.StartComparison("A", "C")
	mgr.RemoveModel("A")

	snap := mgr.Snapshot()
	if _, ok := findModel(snap, "A"); ok {
		t.Error("model A still present after removal")
	}
	for _, name := range []string{"B", "C"} {
		info, ok := findModel(snap, name)
		if !ok {
			t.Fatalf("model %s missing", name)
		}
		if len(info.Comparisons) != 0 {
			t.Errorf("model %s kept edges to removed model: %v", name, info.Comparisons)
		}
	}
}

func TestManagerUnequalGridsRejected(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	f := func(tm, x float64) float64 { return x }
	mgr.AddModel("small", analytic(t, f, 5))
	mgr.AddModel("big", analytic(t, f, 9))
	mgr.StartComparison("small", "big")

	snap := mgr.Snapshot()
	if len(snap.Faults) == 0 {
		t.Fatal("expected a fault for unequal grids")
	}
	if !strings.Contains(snap.Faults[0].Err, "node counts") {
		t.Errorf("fault = %q, want grid size complaint", snap.Faults[0].Err)
	}
	for _, info := range snap.Models {
		if len(info.Comparisons) != 0 {
			t.Errorf("edge created despite unequal grids: %v", info.Comparisons)
		}
	}

	// Faults are delivered once, not re-reported.
	if snap := mgr.Snapshot(); len(snap.Faults) != 0 {
		t.Errorf("fault reported twice: %v", snap.Faults)
	}
}

func TestManagerUnknownComparisonEndpoint(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return x }, 5))
	mgr.StartComparison("A", "ghost")

	snap := mgr.Snapshot()
	if len(snap.Faults) != 1 {
		t.Fatalf("faults = %v, want exactly one", snap.Faults)
	}
	if snap.Faults[0].Model != "ghost" {
		t.Errorf("fault names %q, want ghost", snap.Faults[0].Model)
	}
}

func TestManagerRemovalOpsIgnoreUnknownNames(t *testing.T) {
	mgr := New(time.Millisecond)
	defer mgr.Close()

	mgr.RemoveModel("ghost")
	mgr.RestartModel("ghost")
	mgr.StopComparison("ghost", "phantom")

	if snap := mgr.Snapshot(); len(snap.Faults) != 0 {
		t.Errorf("removal-style ops on unknown names faulted: %v", snap.Faults)
	}
}

func TestManagerSetMinTickTimePacesLoop(t *testing.T) {
	mgr := New(0)
	defer mgr.Close()

	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return x }, 5))
	mgr.SetMinTickTime(30 * time.Millisecond)
	mgr.Snapshot() // wait until the new floor is in effect

	start := time.Now()
	mgr.Snapshot()
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("snapshot returned after %v, want at least one 30ms tick", elapsed)
	}
}

func TestManagerUseAfterClosePanics(t *testing.T) {
	mgr := New(time.Millisecond)
	mgr.AddModel("A", analytic(t, func(tm, x float64) float64 { return x }, 5))
	mgr.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic when commanding a closed manager")
		}
	}()
	mgr.AddModel("B", analytic(t, func(tm, x float64) float64 { return x }, 5))
}
