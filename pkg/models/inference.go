// Package models contains shared data models used across the loglens codebase.
package models

import "context"

// InferenceClient is the contract the analyzer pipeline requires from any
// inference service. Never call a specific provider directly; always inject
// this interface.
type InferenceClient interface {
	// Complete sends one request and returns the raw reply text.
	Complete(ctx context.Context, req InferenceRequest) (InferenceReply, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// InferenceRequest is a single provider-agnostic completion request.
type InferenceRequest struct {
	Model     string `json:"model"`
	System    string `json:"system"`
	User      string `json:"user"`
	MaxTokens int    `json:"max_tokens"`
}

// InferenceReply is the raw reply of an inference service.
type InferenceReply struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}
