package model

// Metadata describes the exported network: tensor names and shapes, the
// square input size, the per-channel means (B, G, R) used during training
// and the class vocabulary.
type Metadata struct {
	InputName   string    `json:"input_name"`
	OutputName  string    `json:"output_name"`
	InputShape  []int64   `json:"input_shape"`
	OutputShape []int64   `json:"output_shape"`
	ImageSize   int       `json:"image_size"`
	Mean        []float32 `json:"mean"`
	// Interpolation used when resizing to ImageSize: nearest (default),
	// bilinear, bicubic or lanczos.
	Interpolation string   `json:"interpolation"`
	ClassIndex    string   `json:"class_index"`
	Classes       []string `json:"classes"`
}

// Prediction is a single decoded class with the model's probability for it.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
}
