// Package export writes simulation runs to disk: a copy of the scenario that
// produced the run, one JSON document for the snapshot as a whole and one
// CSV of grid positions and values per model. The output is a report, not a
// checkpoint; runs cannot be resumed from it.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/avolkov/fieldsim/internal/config"
	"github.com/avolkov/fieldsim/internal/manager"
)

type Writer struct {
	baseDir string
}

func New(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

type runDocument struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Snapshot  manager.Snapshot `json:"snapshot"`
}

// Save writes the scenario and snap into a fresh run directory under the
// base dir and returns the directory path.
func (w *Writer) Save(scenario *config.Scenario, snap manager.Snapshot) (string, error) {
	runID := fmt.Sprintf("run_%d", time.Now().Unix())
	runDir := filepath.Join(w.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := config.Save(filepath.Join(runDir, "scenario.yaml"), scenario); err != nil {
		return "", fmt.Errorf("scenario: %w", err)
	}

	doc := runDocument{ID: runID, Timestamp: time.Now(), Snapshot: snap}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "snapshot.json"), data, 0644); err != nil {
		return "", err
	}

	for _, info := range snap.Models {
		if err := writeNodesCSV(filepath.Join(runDir, info.Name+".csv"), info); err != nil {
			return "", fmt.Errorf("model %s: %w", info.Name, err)
		}
	}
	return runDir, nil
}

func writeNodesCSV(path string, info manager.ModelInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"x", "value"}); err != nil {
		return err
	}
	step := 0.0
	if len(info.Nodes) > 1 {
		step = info.Length / float64(len(info.Nodes)-1)
	}
	for i, v := range info.Nodes {
		row := []string{
			strconv.FormatFloat(float64(i)*step, 'g', -1, 64),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
