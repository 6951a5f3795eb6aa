package api

import "github.com/samcharles93/devplane/internal/devctx"

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Devices int    `json:"devices"`
	Version string `json:"version,omitempty"`
}

type DeviceList struct {
	Object  string                `json:"object"`
	Backend string                `json:"backend"`
	Data    []devctx.Capabilities `json:"data"`
}

type GemmModeResponse struct {
	TrueFP16 bool `json:"true_fp16"`
	// Accumulation is "fp16" or "fp32".
	Accumulation string `json:"accumulation"`
}

type RNGResponse struct {
	Device     int    `json:"device"`
	Capacity   int    `json:"capacity"`
	Seed       uint64 `json:"seed"`
	StateBytes int    `json:"state_bytes"`
}
