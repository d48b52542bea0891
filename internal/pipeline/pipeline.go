package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Brownie44l1/vgg-api/internal/model"
	"github.com/Brownie44l1/vgg-api/internal/preprocess"
)

var (
	// ErrDecode means the upload is not a readable image.
	ErrDecode = preprocess.ErrDecode
	// ErrShape means a tensor or score vector did not have the size the model
	// and vocabulary agree on.
	ErrShape = errors.New("shape mismatch")
	// ErrInference means the model failed while running.
	ErrInference = errors.New("inference failed")
)

// Predictor runs one forward pass. *model.Server satisfies it.
type Predictor interface {
	Predict(input []float32) ([]float32, error)
	Classes() []string
}

// Classifier wires preprocessing, inference and decoding together. It holds
// no per-request state.
type Classifier struct {
	pre       *preprocess.Preprocessor
	predictor Predictor
}

func New(pre *preprocess.Preprocessor, predictor Predictor) *Classifier {
	return &Classifier{pre: pre, predictor: predictor}
}

// NewFromServer builds the preprocessor from the model's own metadata so the
// input size and normalization always match the loaded weights.
func NewFromServer(s *model.Server) (*Classifier, error) {
	pre, err := preprocess.NewWithInterpolation(s.Metadata.ImageSize, s.Metadata.BGRMean(), s.Metadata.Interpolation)
	if err != nil {
		return nil, err
	}
	return New(pre, s), nil
}

// ClassifyFile reads the image at path and classifies it.
func (c *Classifier) ClassifyFile(ctx context.Context, path string, k int) ([]model.Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return c.Classify(ctx, data, k)
}

// Classify returns the k most likely labels for an encoded image. Errors wrap
// ErrDecode, ErrShape or ErrInference when they come from the matching stage.
func (c *Classifier) Classify(ctx context.Context, data []byte, k int) ([]model.Prediction, error) {
	tensor, err := c.pre.Process(data)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, err := c.predictor.Predict(tensor.Data)
	if err != nil {
		if errors.Is(err, model.ErrInputShape) {
			return nil, fmt.Errorf("%w: %w", ErrShape, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	predictions, err := model.TopK(scores, c.predictor.Classes(), k)
	if err != nil {
		if errors.Is(err, model.ErrOutputShape) {
			return nil, fmt.Errorf("%w: %w", ErrShape, err)
		}
		return nil, err
	}
	return predictions, nil
}
