package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// RenderItem is one source image plus its (optionally user-edited) dialogue
// text. Empty Text means the worker runs OCR on the image itself.
type RenderItem struct {
	ImageKey       string `json:"image_key"`
	Text           string `json:"text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
}

// RenderRequestMessage is the inbound message from the render.request queue.
type RenderRequestMessage struct {
	JobID     uuid.UUID    `json:"job_id"`
	UserID    string       `json:"user_id"`
	Language  string       `json:"language"`
	Items     []RenderItem `json:"items"`
	UserEmail string       `json:"user_email"`
}

// Validate enforces the message schema before any work starts. A message that
// fails here is poison and goes straight to the DLQ.
func (m *RenderRequestMessage) Validate() error {
	if m.JobID == uuid.Nil {
		return &ParseError{Field: "job_id", Reason: "missing"}
	}
	if m.UserID == "" {
		return &ParseError{Field: "user_id", Reason: "missing"}
	}
	if len(m.Items) == 0 {
		return &ParseError{Field: "items", Reason: "empty"}
	}
	for i, it := range m.Items {
		if it.ImageKey == "" {
			return &ParseError{Field: "items", Reason: fmt.Sprintf("item %d has no image_key", i)}
		}
	}
	return nil
}

// RenderStatusMessage is the outbound message published to the render.status queue.
type RenderStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
