// Package manager runs simulation models on a dedicated background loop.
// A single worker goroutine owns every model and the comparison graph;
// callers talk to it through a command channel and receive state only as
// snapshot copies, so no model data is ever shared across goroutines.
package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/avolkov/fieldsim/internal/field"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrUnequalGrids = errors.New("models have different node counts")
)

// maxFaults bounds the fault backlog between snapshots; older entries are
// dropped first.
const maxFaults = 64

type command interface{ isCommand() }

type addModel struct {
	name  string
	model field.Model
}
type removeModel struct{ name string }
type restartModel struct{ name string }
type startComparison struct{ a, b string }
type stopComparison struct{ a, b string }
type setMinTickTime struct{ d time.Duration }
type requestSnapshot struct{ reply chan Snapshot }
type exit struct{}

func (addModel) isCommand()        {}
func (removeModel) isCommand()     {}
func (restartModel) isCommand()    {}
func (startComparison) isCommand() {}
func (stopComparison) isCommand()  {}
func (setMinTickTime) isCommand()  {}
func (requestSnapshot) isCommand() {}
func (exit) isCommand()            {}

// ModelInfo is the snapshot view of one model: a copy of its node array plus
// the divergence to every partner it is currently compared against.
type ModelInfo struct {
	Name        string             `json:"name"`
	Nodes       []float64          `json:"nodes"`
	Length      float64            `json:"length"`
	Comparisons map[string]float64 `json:"comparisons,omitempty"`
}

// Fault is an error contained to one model or command, carried on the next
// snapshot instead of interrupting the loop.
type Fault struct {
	Model string `json:"model"`
	Err   string `json:"error"`
}

type Snapshot struct {
	Models   []ModelInfo `json:"models"`
	TickRate int         `json:"tick_rate"`
	Faults   []Fault     `json:"faults,omitempty"`
}

// Manager owns named models and advances all of them once per tick on its
// own goroutine, independent of any caller's cadence. All methods except
// Snapshot and Close are fire-and-forget. Calling any method after Close is
// a lifetime bug and panics.
type Manager struct {
	cmds chan command
	done chan struct{}
	log  *slog.Logger
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New starts the worker loop. The command channel holds up to 128 pending
// commands; a producer bursting past that blocks until the next drain, at
// most one tick period away.
func New(minTickTime time.Duration, opts ...Option) *Manager {
	m := &Manager{
		cmds: make(chan command, 128),
		done: make(chan struct{}),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run(NewTicker(minTickTime))
	return m
}

// AddModel registers a model under a unique name. The manager takes sole
// ownership of the model; the caller must not touch it afterwards. A name
// collision leaves the existing model in place.
func (m *Manager) AddModel(name string, mdl field.Model) { m.cmds <- addModel{name, mdl} }

// RemoveModel drops a model and every comparison touching it. Unknown names
// are a no-op.
func (m *Manager) RemoveModel(name string) { m.cmds <- removeModel{name} }

// RestartModel resets a model to its initial condition. Unknown names are a
// no-op.
func (m *Manager) RestartModel(name string) { m.cmds <- restartModel{name} }

// StartComparison restarts both models and begins tracking their divergence.
// Unknown names or unequal grids surface as faults on the next snapshot.
func (m *Manager) StartComparison(a, b string) { m.cmds <- startComparison{a, b} }

// StopComparison stops tracking the pair. Missing edges are a no-op.
func (m *Manager) StopComparison(a, b string) { m.cmds <- stopComparison{a, b} }

// SetMinTickTime changes the loop's pacing floor starting with the next tick.
func (m *Manager) SetMinTickTime(d time.Duration) { m.cmds <- setMinTickTime{d} }

// Snapshot returns a copy of every model's state, the divergence graph and
// the measured tick rate, plus any faults since the previous snapshot. It
// blocks until the worker finishes its current iteration, so the wait is
// bounded by one tick period.
func (m *Manager) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	m.cmds <- requestSnapshot{reply}
	return <-reply
}

// Close stops the worker after its current iteration and waits for it to
// finish. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.cmds <- exit{}
	<-m.done
	close(m.cmds)
}

type worker struct {
	models map[string]field.Model
	graph  *Graph
	faults []Fault
	log    *slog.Logger
}

func (m *Manager) run(ticker *Ticker) {
	defer close(m.done)

	w := &worker{
		models: make(map[string]field.Model),
		graph:  NewGraph(),
		log:    m.log,
	}

	running := true
	for running {
		ticker.StartTick()

		var replies []chan Snapshot
	drain:
		for {
			select {
			case cmd := <-m.cmds:
				switch cmd := cmd.(type) {
				case requestSnapshot:
					replies = append(replies, cmd.reply)
				case setMinTickTime:
					ticker.SetMinTickTime(cmd.d)
				case exit:
					running = false
				default:
					w.apply(cmd)
				}
			default:
				break drain
			}
		}

		w.stepAll()
		w.recompare()

		if len(replies) > 0 {
			snap := w.snapshot(ticker.TPS())
			for _, reply := range replies {
				reply <- snap
			}
		}

		ticker.EndTick()
	}
	m.log.Debug("manager loop stopped", "models", len(w.models))
}

func (w *worker) apply(cmd command) {
	switch cmd := cmd.(type) {
	case addModel:
		if _, ok := w.models[cmd.name]; ok {
			w.log.Debug("model already registered", "model", cmd.name)
			return
		}
		w.models[cmd.name] = cmd.model
		w.graph.AddNode(cmd.name)
		w.log.Debug("model added", "model", cmd.name, "nodes", len(cmd.model.Nodes()))
	case removeModel:
		if _, ok := w.models[cmd.name]; !ok {
			return
		}
		w.graph.RemoveNode(cmd.name)
		delete(w.models, cmd.name)
		w.log.Debug("model removed", "model", cmd.name)
	case restartModel:
		if mdl, ok := w.models[cmd.name]; ok {
			if err := mdl.Reset(); err != nil {
				w.fault(cmd.name, err)
			}
		}
	case startComparison:
		w.startComparison(cmd.a, cmd.b)
	case stopComparison:
		w.graph.RemoveEdge(cmd.a, cmd.b)
	}
}

// startComparison restarts both endpoints so the divergence accumulates from
// a shared baseline, then creates the edge. Both models must exist and have
// grids of the same size.
func (w *worker) startComparison(a, b string) {
	ma, ok := w.models[a]
	if !ok {
		w.fault(a, ErrUnknownModel)
		return
	}
	mb, ok := w.models[b]
	if !ok {
		w.fault(b, ErrUnknownModel)
		return
	}
	if len(ma.Nodes()) != len(mb.Nodes()) {
		w.fault(a+"/"+b, fmt.Errorf("%w: %d vs %d", ErrUnequalGrids, len(ma.Nodes()), len(mb.Nodes())))
		return
	}
	if err := ma.Reset(); err != nil {
		w.fault(a, err)
	}
	if err := mb.Reset(); err != nil {
		w.fault(b, err)
	}
	w.graph.SetEdge(a, b, 0)
}

// stepAll advances every model by one step. Models are mutually independent,
// so the fan-out runs in parallel; a step error keeps that model's previous
// state and is recorded as a fault.
func (w *worker) stepAll() {
	names := make([]string, 0, len(w.models))
	for name := range w.models {
		names = append(names, name)
	}

	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, mdl field.Model) {
			defer wg.Done()
			errs[i] = mdl.Step()
		}(i, w.models[name])
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			w.fault(names[i], err)
			w.log.Warn("model step failed", "model", names[i], "error", err)
		}
	}
}

// recompare refreshes every edge from the endpoints' current node arrays.
// Runs strictly after stepAll so all edges see this tick's state.
func (w *worker) recompare() {
	w.graph.Edges(func(a, b string, _ float64) {
		w.graph.SetEdge(a, b, divergence(w.models[a], w.models[b]))
	})
}

// divergence is the L2 distance between two models' node arrays. Equal grid
// sizes are guaranteed by the StartComparison check.
func divergence(a, b field.Model) float64 {
	return floats.Distance(a.Nodes(), b.Nodes(), 2)
}

func (w *worker) fault(model string, err error) {
	if len(w.faults) >= maxFaults {
		w.faults = w.faults[1:]
	}
	w.faults = append(w.faults, Fault{Model: model, Err: err.Error()})
}

func (w *worker) snapshot(tps int) Snapshot {
	names := make([]string, 0, len(w.models))
	for name := range w.models {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		mdl := w.models[name]
		infos = append(infos, ModelInfo{
			Name:        name,
			Nodes:       append([]float64(nil), mdl.Nodes()...),
			Length:      mdl.Length(),
			Comparisons: w.graph.EdgesOf(name),
		})
	}

	snap := Snapshot{Models: infos, TickRate: tps, Faults: w.faults}
	w.faults = nil
	return snap
}
