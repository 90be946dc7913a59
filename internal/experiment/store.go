package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/shared/jsonx"
)

// Artifact names are fixed so downstream readers find documents by name.
const (
	SingleTurnArtifact   = "single_turn_results.json"
	LongitudinalArtifact = "longitudinal_results.json"
	RunMetaArtifact      = "run_meta.json"
)

// RunMeta is the sidecar metadata written next to a result document. The
// document wire format is fixed for downstream readers, so run identity
// lives here.
type RunMeta struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Models    []string  `json:"models"`
	Tasks     []string  `json:"tasks"`
}

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return ksuid.New().String()
}

func writeDocument(outputDir, name string, doc any) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := jsonx.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// WriteSingleTurn persists the single-turn document, creating the output
// directory as needed. Returns the written path.
func WriteSingleTurn(outputDir string, records []*Record) (string, error) {
	if records == nil {
		records = []*Record{}
	}
	return writeDocument(outputDir, SingleTurnArtifact, records)
}

// WriteLongitudinal persists the longitudinal document.
func WriteLongitudinal(outputDir string, results Results) (string, error) {
	if results == nil {
		results = Results{}
	}
	return writeDocument(outputDir, LongitudinalArtifact, results)
}

// WriteRunMeta persists the run's sidecar metadata.
func WriteRunMeta(outputDir string, meta RunMeta) (string, error) {
	return writeDocument(outputDir, RunMetaArtifact, meta)
}

// ReadSingleTurn loads a single-turn document for reporting or serving.
func ReadSingleTurn(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []*Record
	if err := jsonx.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// ReadLongitudinal loads a longitudinal document.
func ReadLongitudinal(path string) (Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var results Results
	if err := jsonx.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return results, nil
}
