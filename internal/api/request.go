package api

// GenerationRequest is the inbound payload for synchronous generation.
// StylePreset drives routing; the rest is passed through to the backend.
type GenerationRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	StylePreset    string `json:"style_preset,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
}

// BatchRequest is the inbound payload for asynchronous batch jobs.
type BatchRequest struct {
	Requests    []GenerationRequest `json:"requests"`
	StylePreset string              `json:"style_preset,omitempty"`
}
