// Package checkpoints serializes trained tree ensembles so they can be
// reloaded as warm start predictors.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FrameworkName is stamped into checkpoint metadata.
const FrameworkName = "lightgbm-go"

// FormatVersion is the current checkpoint layout version.
const FormatVersion = "1.0.0"

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatProto
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatProto:
		return "Proto"
	default:
		return "Unknown"
	}
}

// FormatForPath picks the format from a file extension: ".json" is JSON,
// anything else is the binary proto format.
func FormatForPath(path string) CheckpointFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatProto
}

// Checkpoint represents a complete model state: the tree ensemble, the
// parameters it was trained with and training progress.
type Checkpoint struct {
	Objective    string         `json:"objective"`
	NumFeature   int            `json:"num_feature"`
	FeatureNames []string       `json:"feature_names,omitempty"`
	InitScore    float64        `json:"init_score"`
	Params       map[string]any `json:"params,omitempty"`
	Trees        []TreeState    `json:"trees"`

	// Attributes are the string attributes set on the model during training.
	Attributes map[string]string `json:"attributes,omitempty"`

	TrainingState TrainingState      `json:"training_state"`
	Metadata      CheckpointMetadata `json:"metadata"`
}

// TreeState is one serialized decision stump. A negative Feature marks a
// constant tree that always yields LeftValue.
type TreeState struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Categorical bool    `json:"categorical,omitempty"`
	LeftValue   float64 `json:"left_value"`
	RightValue  float64 `json:"right_value"`
	Gain        float64 `json:"gain,omitempty"`
}

// TrainingState captures the training progress at save time
type TrainingState struct {
	Iteration     int     `json:"iteration"`
	BestIteration int     `json:"best_iteration"`
	LearningRate  float64 `json:"learning_rate"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// CheckpointSaver handles saving model checkpoints in various formats
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// SaveCheckpoint writes checkpoint to path, filling in missing metadata.
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = FrameworkName
		checkpoint.Metadata.Version = FormatVersion
		checkpoint.Metadata.CreatedAt = time.Now().UTC()
	}
	switch cs.format {
	case FormatJSON:
		return cs.saveJSON(checkpoint, path)
	case FormatProto:
		return cs.saveProto(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// LoadCheckpoint loads a model checkpoint
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	var (
		checkpoint *Checkpoint
		err        error
	)
	switch cs.format {
	case FormatJSON:
		checkpoint, err = cs.loadJSON(path)
	case FormatProto:
		checkpoint, err = cs.loadProto(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
	if err != nil {
		return nil, err
	}
	if err := checkpoint.validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	return checkpoint, nil
}

func (c *Checkpoint) validate() error {
	for i, t := range c.Trees {
		if t.Feature >= c.NumFeature {
			return fmt.Errorf("tree %d splits on feature %d of %d", i, t.Feature, c.NumFeature)
		}
	}
	return nil
}

// saveJSON saves checkpoint in JSON format
func (cs *CheckpointSaver) saveJSON(checkpoint *Checkpoint, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return nil
}

// loadJSON loads checkpoint from JSON format
func (cs *CheckpointSaver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &checkpoint, nil
}
