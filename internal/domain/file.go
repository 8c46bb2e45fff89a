package domain

import "time"

// PitchDeck is the metadata of an uploaded pitch-deck object. The bytes live in
// object storage under Object.
type PitchDeck struct {
	Object      string    `json:"object"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Hash        string    `json:"hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
