package checkpoints

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCheckpoint() *Checkpoint {
	return &Checkpoint{
		Objective:    "binary",
		NumFeature:   2,
		FeatureNames: []string{"age", "income"},
		InitScore:    -0.25,
		Params:       map[string]any{"learning_rate": 0.1, "metric": []any{"auc"}},
		Trees: []TreeState{
			{Feature: 0, Threshold: 1.5, LeftValue: -0.1, RightValue: 0.2, Gain: 3.5},
			{Feature: 1, Threshold: 2, Categorical: true, LeftValue: 0.05, RightValue: -0.05},
			{Feature: -1, LeftValue: 0.01},
		},
		Attributes: map[string]string{"best_iteration": "1"},
		TrainingState: TrainingState{
			Iteration:     3,
			BestIteration: 2,
			LearningRate:  0.1,
		},
		Metadata: CheckpointMetadata{
			Version:     FormatVersion,
			Framework:   FrameworkName,
			CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Description: "Test checkpoint",
			Tags:        []string{"test"},
		},
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	tests := []struct {
		name   string
		format CheckpointFormat
		file   string
	}{
		{name: "json", format: FormatJSON, file: "model.json"},
		{name: "proto", format: FormatProto, file: "model.pb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			saver := NewCheckpointSaver(tt.format)
			want := testCheckpoint()

			require.NoError(t, saver.SaveCheckpoint(want, path))
			got, err := saver.LoadCheckpoint(path)
			require.NoError(t, err)

			assert.Equal(t, want.Objective, got.Objective)
			assert.Equal(t, want.NumFeature, got.NumFeature)
			assert.Equal(t, want.FeatureNames, got.FeatureNames)
			assert.Equal(t, want.InitScore, got.InitScore)
			assert.Equal(t, want.Trees, got.Trees)
			assert.Equal(t, want.Attributes, got.Attributes)
			assert.Equal(t, want.TrainingState, got.TrainingState)
			assert.Equal(t, 0.1, got.Params["learning_rate"])
			assert.True(t, want.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
		})
	}
}

func TestSaveCheckpointFillsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	c := &Checkpoint{NumFeature: 1}

	require.NoError(t, NewCheckpointSaver(FormatJSON).SaveCheckpoint(c, path))
	assert.Equal(t, FrameworkName, c.Metadata.Framework)
	assert.Equal(t, FormatVersion, c.Metadata.Version)
	assert.False(t, c.Metadata.CreatedAt.IsZero())
}

func TestLoadCheckpointErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewCheckpointSaver(FormatJSON).LoadCheckpoint(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pb")
	require.NoError(t, os.WriteFile(garbage, []byte{0xff, 0xff, 0xff}, 0644))
	_, err = NewCheckpointSaver(FormatProto).LoadCheckpoint(garbage)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	c := &Checkpoint{NumFeature: 1, Trees: []TreeState{{Feature: 3}}}
	require.NoError(t, NewCheckpointSaver(FormatJSON).SaveCheckpoint(c, bad))
	_, err = NewCheckpointSaver(FormatJSON).LoadCheckpoint(bad)
	assert.ErrorContains(t, err, "splits on feature 3")

	_, err = NewCheckpointSaver(CheckpointFormat(9)).LoadCheckpoint(bad)
	assert.ErrorContains(t, err, "unsupported checkpoint format")
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("model.json"))
	assert.Equal(t, FormatJSON, FormatForPath("MODEL.JSON"))
	assert.Equal(t, FormatProto, FormatForPath("model.pb"))
	assert.Equal(t, FormatProto, FormatForPath("model"))
	assert.Equal(t, "Proto", FormatProto.String())
	assert.Equal(t, "Unknown", CheckpointFormat(7).String())
}
