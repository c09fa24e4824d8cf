package gbdt

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyzhou-puck/LightGBM/checkpoints"
	"github.com/xyzhou-puck/LightGBM/config"
	"github.com/xyzhou-puck/LightGBM/dataset"
	"github.com/xyzhou-puck/LightGBM/training"
)

func TestInterfaceCompliance(t *testing.T) {
	var _ training.Booster = &Booster{}
	var _ training.BoosterFactory = Factory{}
	var _ training.DatasetPreparer = Factory{}
	var _ training.Predictor = &Predictor{}
	var _ training.Dataset = &dataset.Dataset{}
}

// stepData is y = 0 below x=5 and 1 from x=5, with a noise feature.
func stepData(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	rows := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i%10) + 0.5
		rows[i] = []float64{x, float64((i * 7) % 3)}
		if x >= 5 {
			labels[i] = 1
		}
	}
	ds, err := dataset.FromRows(rows, labels)
	require.NoError(t, err)
	return ds
}

func baseParams(objective string) config.Params {
	return config.Params{
		"objective":        objective,
		"learning_rate":    0.5,
		"min_data_in_leaf": 1,
	}
}

func TestFitStumpFindsStep(t *testing.T) {
	ds := stepData(t, 40)
	b, err := NewBooster(baseParams(ObjectiveRegression), ds)
	require.NoError(t, err)
	require.NoError(t, b.Update(nil))

	tree := b.model.Trees[0]
	assert.Equal(t, 0, tree.Feature)
	assert.InDelta(t, 5.0, tree.Threshold, 1e-9)
	assert.InDelta(t, -0.25, tree.LeftValue, 1e-9)
	assert.InDelta(t, 0.25, tree.RightValue, 1e-9)
	assert.Greater(t, tree.Gain, 0.0)
}

func TestRegressionLossDecreases(t *testing.T) {
	ds := stepData(t, 40)
	b, err := NewBooster(baseParams(ObjectiveRegression), ds)
	require.NoError(t, err)

	prev := math.Inf(1)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Update(nil))
		res, err := b.EvalTrain(nil)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "training", res[0].DataName)
		assert.Equal(t, "l2", res[0].MetricName)
		assert.False(t, res[0].HigherBetter)
		assert.Less(t, res[0].Value, prev)
		prev = res[0].Value
	}
	assert.Equal(t, 5, b.NumTrees())
}

func TestBinaryObjective(t *testing.T) {
	ds := stepData(t, 40)
	params := baseParams(ObjectiveBinary)
	params[config.MetricKey] = "auc,binary_error,binary_logloss"
	b, err := NewBooster(params, ds)
	require.NoError(t, err)
	assert.InDelta(t, 0, b.model.InitScore, 1e-9, "balanced labels start at log-odds 0")

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Update(nil))
	}
	res, err := b.EvalTrain(nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "auc", res[0].MetricName)
	assert.True(t, res[0].HigherBetter)
	assert.InDelta(t, 1.0, res[0].Value, 1e-9)
	assert.InDelta(t, 0.0, res[1].Value, 1e-9)
	assert.Less(t, res[2].Value, math.Log(2))

	preds, err := b.Predict([][]float64{{1, 0}, {9, 0}}, 0)
	require.NoError(t, err)
	assert.Less(t, preds[0], 0.5)
	assert.Greater(t, preds[1], 0.5)
}

func TestBinaryRejectsLabels(t *testing.T) {
	ds, err := dataset.FromRows([][]float64{{1}, {2}}, []float64{0, 2})
	require.NoError(t, err)
	_, err = NewBooster(baseParams(ObjectiveBinary), ds)
	assert.ErrorContains(t, err, "0/1 labels")
}

func TestMinDataInLeaf(t *testing.T) {
	ds := stepData(t, 10)
	params := baseParams(ObjectiveRegression)
	params["min_data_in_leaf"] = 6
	b, err := NewBooster(params, ds)
	require.NoError(t, err)
	require.NoError(t, b.Update(nil))
	assert.Equal(t, -1, b.model.Trees[0].Feature, "no split leaves 6 rows on both sides")
}

func TestValidSetsAndCustomEval(t *testing.T) {
	train := stepData(t, 40)
	valid := stepData(t, 20)
	require.NoError(t, valid.SetReference(train))

	b, err := NewBooster(baseParams(ObjectiveRegression), train)
	require.NoError(t, err)
	require.NoError(t, b.AddValid(valid, "valid_0"))
	assert.Error(t, b.AddValid(valid, "valid_0"), "duplicate name")
	require.NoError(t, b.Update(nil))

	feval := func(preds []float64, data training.Dataset) (string, float64, bool, error) {
		return "rows", float64(len(preds)), true, nil
	}
	res, err := b.EvalValid(feval)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "valid_0", res[0].DataName)
	assert.Equal(t, "l2", res[0].MetricName)
	assert.Equal(t, "rows", res[1].MetricName)
	assert.Equal(t, 20.0, res[1].Value)

	b.SetTrainDataName("train")
	res, err = b.EvalTrain(nil)
	require.NoError(t, err)
	assert.Equal(t, "train", res[0].DataName)
}

func TestCustomObjective(t *testing.T) {
	ds := stepData(t, 20)
	params := baseParams(ObjectiveNone)
	b, err := NewBooster(params, ds)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Update(nil), ErrNoObjective)

	calls := 0
	fobj := func(preds []float64, train training.Dataset) ([]float64, []float64, error) {
		calls++
		labels, err := train.Label()
		if err != nil {
			return nil, nil, err
		}
		grad, hess := make([]float64, len(preds)), make([]float64, len(preds))
		for i := range preds {
			grad[i] = preds[i] - labels[i]
			hess[i] = 1
		}
		return grad, hess, nil
	}
	require.NoError(t, b.Update(fobj))
	assert.Equal(t, 1, calls)

	res, err := b.EvalTrain(nil)
	require.NoError(t, err)
	assert.Empty(t, res, "no built-in metric without an objective")

	bad := func(preds []float64, _ training.Dataset) ([]float64, []float64, error) {
		return []float64{1}, []float64{1}, nil
	}
	assert.Error(t, b.Update(bad))
}

func TestResetParameter(t *testing.T) {
	ds := stepData(t, 20)
	b, err := NewBooster(baseParams(ObjectiveRegression), ds)
	require.NoError(t, err)

	require.NoError(t, b.ResetParameter(config.Params{"learning_rate": 0.1}))
	assert.Equal(t, 0.1, b.tree.learningRate)
	require.NoError(t, b.Update(nil))
	assert.InDelta(t, 0.05, b.model.Trees[0].RightValue, 1e-9)

	assert.Error(t, b.ResetParameter(config.Params{"objective": "binary"}))
	assert.Error(t, b.ResetParameter(config.Params{"max_bin": 16}))
	assert.Error(t, b.ResetParameter(config.Params{"learning_rate": -1}))
	assert.Equal(t, 0.1, b.tree.learningRate, "failed reset leaves parameters unchanged")
}

func TestAttributes(t *testing.T) {
	b, err := NewBooster(baseParams(ObjectiveRegression), stepData(t, 10))
	require.NoError(t, err)

	_, ok := b.Attr("best_iteration")
	assert.False(t, ok)
	b.SetAttr("best_iteration", "4")
	v, ok := b.Attr("best_iteration")
	assert.True(t, ok)
	assert.Equal(t, "4", v)
	b.SetAttr("best_iteration", "")
	_, ok = b.Attr("best_iteration")
	assert.False(t, ok)

	b.SetBestIteration(3)
	assert.Equal(t, 3, b.BestIteration())
}

func TestWarmStartAndSaveLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"json", "model.json"},
		{"proto", "model.pb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := stepData(t, 40)
			b, err := NewBooster(baseParams(ObjectiveBinary), ds)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				require.NoError(t, b.Update(nil))
			}
			b.SetAttr("best_iteration", "2")

			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, b.SaveModel(path, checkpoints.FormatForPath(path)))

			p, err := Factory{}.LoadPredictor(path)
			require.NoError(t, err)
			assert.Equal(t, 3, p.NumTotalIteration())

			rows := [][]float64{{1, 0}, {7, 2}}
			want, err := b.Predict(rows, 0)
			require.NoError(t, err)
			got, err := p.(*Predictor).Predict(rows, 0)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got, 1e-12)

			next := stepData(t, 40)
			require.NoError(t, next.SetPredictor(p))
			cont, err := Factory{}.NewBooster(baseParams(ObjectiveBinary), next)
			require.NoError(t, err)
			require.NoError(t, cont.Update(nil))
			exported, err := cont.ToPredictor()
			require.NoError(t, err)
			assert.Equal(t, 4, exported.NumTotalIteration())
		})
	}
}

func TestPredictNumIteration(t *testing.T) {
	b, err := NewBooster(baseParams(ObjectiveRegression), stepData(t, 20))
	require.NoError(t, err)
	require.NoError(t, b.Update(nil))
	require.NoError(t, b.Update(nil))

	one, err := b.Predict([][]float64{{9, 0}}, 1)
	require.NoError(t, err)
	all, err := b.Predict([][]float64{{9, 0}}, 0)
	require.NoError(t, err)
	assert.Less(t, one[0], all[0])

	_, err = b.Predict([][]float64{{9}}, 0)
	assert.Error(t, err)
}

func TestFactoryRejectsForeignDataset(t *testing.T) {
	_, err := Factory{}.NewBooster(config.Params{}, nil)
	assert.Error(t, err)
}

func TestInvalidParams(t *testing.T) {
	ds := stepData(t, 10)
	tests := []config.Params{
		{"objective": "poisson"},
		{"metric": "ndcg"},
		{"learning_rate": 0},
		{"lambda_l2": -1},
		{"min_data_in_leaf": "x"},
		{"boost_from_average": "maybe"},
		{"max_bin": 1},
	}
	for i, p := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			_, err := NewBooster(p, ds)
			assert.Error(t, err)
		})
	}
}

func TestCVAppliesMaxBin(t *testing.T) {
	for _, stratified := range []bool{false, true} {
		t.Run(fmt.Sprintf("stratified=%v", stratified), func(t *testing.T) {
			rows := make([][]float64, 40)
			labels := make([]float64, 40)
			for i := range rows {
				rows[i] = []float64{float64(i)}
				labels[i] = float64(i % 2)
			}
			full, err := dataset.FromRows(rows, labels)
			require.NoError(t, err)

			cfg := training.DefaultCVConfig()
			cfg.NumBoostRound = 1
			cfg.NFold = 2
			cfg.Stratified = stratified
			cfg.VerboseEval = 0
			params := config.Params{"objective": "regression", "min_data_in_leaf": 1, "max_bin": 3}

			_, err = training.NewTrainer(Factory{}).CV(params, full, cfg)
			require.NoError(t, err)
			require.NotEmpty(t, full.Bins(0))
			assert.LessOrEqual(t, len(full.Bins(0)), 2)
		})
	}
}

func TestPrepareDataset(t *testing.T) {
	ds := stepData(t, 30)
	require.NoError(t, Factory{}.PrepareDataset(config.Params{"max_bin": 4}, ds))
	require.NoError(t, ds.Construct())
	assert.LessOrEqual(t, len(ds.Bins(0)), 3)

	assert.Error(t, Factory{}.PrepareDataset(config.Params{"max_bin": 0}, stepData(t, 5)))
	assert.Error(t, Factory{}.PrepareDataset(config.Params{}, nil))
}

func TestMetrics(t *testing.T) {
	labels := []float64{1, 2, 3, 4}
	preds := []float64{1, 2, 3, 6}
	rm := regressionMetrics(labels, preds, nil)
	assert.InDelta(t, 1.0, rm.MSE, 1e-12)
	assert.InDelta(t, 1.0, rm.RMSE, 1e-12)
	assert.InDelta(t, 0.5, rm.MAE, 1e-12)
	assert.InDelta(t, 0.2, rm.R2, 1e-12)

	weighted := regressionMetrics(labels, preds, []float64{1, 1, 1, 0})
	assert.InDelta(t, 0.0, weighted.MSE, 1e-12)

	y := []float64{0, 0, 1, 1}
	assert.InDelta(t, 0.75, aucROC(y, []float64{0.1, 0.4, 0.35, 0.8}, nil), 1e-12)
	assert.InDelta(t, 0.5, aucROC(y, []float64{0.5, 0.5, 0.5, 0.5}, nil), 1e-12)
	assert.Equal(t, 1.0, aucROC([]float64{1, 1}, []float64{0.2, 0.3}, nil))

	assert.InDelta(t, 0.25, binaryError(y, []float64{0.1, 0.6, 0.9, 0.9}, nil), 1e-12)
	assert.InDelta(t, math.Log(2), binaryLogloss(y, []float64{0.5, 0.5, 0.5, 0.5}, nil), 1e-12)
}

func TestResolveMetrics(t *testing.T) {
	ms, err := resolveMetrics([]string{"mse", "l2", "MAE"}, regression{})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "l2", ms[0].name)
	assert.Equal(t, "l1", ms[1].name)

	ms, err = resolveMetrics(nil, binary{})
	require.NoError(t, err)
	assert.Equal(t, "binary_logloss", ms[0].name)

	ms, err = resolveMetrics([]string{"None"}, binary{})
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestCategoricalSplit(t *testing.T) {
	rows := make([][]float64, 12)
	labels := make([]float64, 12)
	for i := range rows {
		c := float64(i % 3)
		rows[i] = []float64{c}
		if c == 1 {
			labels[i] = 10
		}
	}
	ds, err := dataset.FromRows(rows, labels)
	require.NoError(t, err)
	require.NoError(t, ds.SetCategoricalFeatures([]string{"0"}))

	b, err := NewBooster(baseParams(ObjectiveRegression), ds)
	require.NoError(t, err)
	require.NoError(t, b.Update(nil))

	tree := b.model.Trees[0]
	assert.True(t, tree.Categorical)
	assert.Equal(t, 1.0, tree.Threshold)
	assert.Greater(t, tree.Predict([]float64{1}), tree.Predict([]float64{2}))
	assert.Equal(t, tree.RightValue, tree.Predict([]float64{math.NaN()}))
}
