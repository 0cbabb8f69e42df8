// Package api holds the JSON request/response shapes of the HTTP surface.
package api

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SendMessageRequest carries a text message, optionally with an inline
// attachment. When an attachment is present the message becomes its caption.
type SendMessageRequest struct {
	Number      string `json:"number"`
	Message     string `json:"message"`
	FileName    string `json:"fileName,omitempty"`
	Caption     string `json:"caption,omitempty"`
	PDFBase64   string `json:"pdfBase64,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

type SendMediaRequest struct {
	Number   string `json:"number"`
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// SendUniversalMediaRequest addresses a recipient that may already be a
// fully-qualified chat address and selects the payload by type.
type SendUniversalMediaRequest struct {
	Number    string  `json:"number"`
	Type      string  `json:"type"`
	Link      string  `json:"link,omitempty"`
	Text      string  `json:"text,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	FileName  string  `json:"fileName,omitempty"`
}

type CreateUserRequest struct {
	ExternalID      string `json:"externalId"`
	Name            string `json:"name"`
	ReceiveMessages bool   `json:"receiveMessages"`
}

type UpdateUserRequest struct {
	Name            string `json:"name"`
	ReceiveMessages bool   `json:"receiveMessages"`
}

type UserResponse struct {
	ExternalID      string    `json:"externalId"`
	Name            string    `json:"name"`
	ReceiveMessages bool      `json:"receiveMessages"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}
