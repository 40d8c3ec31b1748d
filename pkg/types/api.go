package types

// GenerateRequest represents a text-to-image generation request payload.
// Pointer fields are optional; omitted values take server defaults.
type GenerateRequest struct {
	// Required text prompt describing the image.
	// example: a red apple on a table
	Prompt string `json:"prompt" example:"a red apple on a table"`
	// Negative prompt listing things to avoid. Defaults to a generic quality list.
	// example: text, watermark, blurry
	NegativePrompt *string `json:"negative_prompt,omitempty" example:"text, watermark, blurry"`
	// Image width in pixels (512-1024). Default 1024.
	// example: 512
	Width *int `json:"width,omitempty" example:"512"`
	// Image height in pixels (512-1024). Default 1024.
	// example: 512
	Height *int `json:"height,omitempty" example:"512"`
	// Number of denoising steps (10-50). Default 28.
	// example: 20
	Steps *int `json:"steps,omitempty" example:"20"`
	// Classifier-free guidance scale (1.0-20.0). Default 7.5.
	// example: 7.5
	CFG *float64 `json:"cfg,omitempty" example:"7.5"`
	// Random seed for reproducibility. Omit to let the server draw one.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Base64-encoded PNG image.
	Image string `json:"image"`
	// Seed used for generation; repeat the request with it to reproduce the image.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Identifier of the model that produced the image.
	// example: runwayml/stable-diffusion-v1-5
	Model string `json:"model" example:"runwayml/stable-diffusion-v1-5"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	// example: ready
	Status string `json:"status" example:"ready"`
	// Compute device class (cuda or cpu).
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Active model identifier.
	// example: stabilityai/stable-diffusion-xl-base-1.0
	Model string `json:"model" example:"stabilityai/stable-diffusion-xl-base-1.0"`
	// Version string reported by the diffusion runtime.
	// example: stable-diffusion.cpp master-1e0d283
	LibraryVersion string `json:"library_version" example:"stable-diffusion.cpp master-1e0d283"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Whether a generation pipeline is currently held by the process.
	// example: true
	PipelineLoaded bool `json:"pipeline_loaded" example:"true"`
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Whether accelerated hardware was detected.
	// example: true
	HardwareAvailable bool `json:"hardware_available" example:"true"`
	// Coarse model family label (SDXL or SD1.5).
	// example: SDXL
	ModelType string `json:"model_type" example:"SDXL"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	// Location of the field, e.g. ["body","width"].
	Loc []string `json:"loc"`
	// Human-readable message.
	// example: width must be between 512 and 1024
	Msg string `json:"msg" example:"width must be between 512 and 1024"`
	// Validation rule that failed.
	// example: max
	Type string `json:"type" example:"max"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Field-level details for validation failures.
	Detail []FieldError `json:"detail,omitempty"`
}
