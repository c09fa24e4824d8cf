package training

import "errors"

var (
	// ErrNotDataset is returned when a training, full or validation dataset
	// is missing.
	ErrNotDataset = errors.New("training only accepts Dataset object")

	// ErrStratifiedUnavailable is returned when stratified folds are
	// requested without a stratified splitter.
	ErrStratifiedUnavailable = errors.New("a stratified splitter is required for stratified cv")

	// ErrInvalidFoldCount is returned when the fold count cannot partition
	// the dataset.
	ErrInvalidFoldCount = errors.New("invalid number of folds")
)
