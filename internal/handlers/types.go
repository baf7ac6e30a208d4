package handlers

import "github.com/Brownie44l1/aidetect-api/internal/model"

type PredictionResponse struct {
	PredictedClass model.Label `json:"predicted_class"`
	Probability    float64     `json:"probability"`
	PredictionTime float64     `json:"prediction_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status     string        `json:"status"`
	Classes    []model.Label `json:"classes"`
	InputShape []int64       `json:"input_shape"`
}
