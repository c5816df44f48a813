package transfer

type HuggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters HuggingFaceParameters `json:"parameters"`
}

type HuggingFaceParameters struct {
	Width             int `json:"width,omitempty"`
	Height            int `json:"height,omitempty"`
	NumInferenceSteps int `json:"num_inference_steps,omitempty"`
}

type HuggingFaceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}
