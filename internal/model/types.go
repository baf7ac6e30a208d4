package model

// Label is a class the classifier can predict.
type Label string

const (
	LabelAI     Label = "ai"
	LabelNature Label = "nature"
)

// Labels maps logit index to class.
var Labels = []Label{LabelAI, LabelNature}

// Metadata describes the loaded network as declared by the ONNX file.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	Classes     []Label `json:"classes"`
}

// Prediction is the result of a single forward pass.
type Prediction struct {
	Class         Label
	Probability   float64
	Probabilities map[Label]float64
}
