// Package recognizer talks to the face embedding service and turns its
// responses into ranked similarity-search candidates for the resolver.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/recognition"
)

const defaultRecognizerURL = "http://localhost:8000"

// ErrNoFace is returned when the embedding service finds no face in the
// query image. Callers treat it as "no candidates", not as a failure.
var ErrNoFace = errors.New("no face detected in image")

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new embedding client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultRecognizerURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// faceEmbedding represents a single detected face in the response
type faceEmbedding struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// representResponse represents the response from the /represent endpoint
type representResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceEmbedding `json:"faces"`
	Model      string          `json:"model"`
}

// EmbeddingResult contains the embedding of the most prominent detected face.
type EmbeddingResult struct {
	Embedding []float32
	Dim       int
	DetScore  float64
	Model     string
}

// postMultipartImage constructs a multipart form with the image data and the
// model parameters and posts it to the given endpoint. The part carries an
// explicit Content-Type based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, profile recognition.Profile) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.WriteField("model_name", string(profile.Model)); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("detector_backend", profile.Detector); err != nil {
		return nil, fmt.Errorf("failed to write detector field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The service reports "no face in image" as 422; normalize it to the
	// sentinel so callers can treat it as an empty search.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrNoFace
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Represent detects the most prominent face in the image and computes its
// embedding for the profile's model. Returns ErrNoFace when the service
// detects no face.
func (c *Client) Represent(ctx context.Context, imageData []byte, profile recognition.Profile) (*EmbeddingResult, error) {
	body, err := c.postMultipartImage(ctx, "/represent", imageData, profile)
	if err != nil {
		return nil, err
	}

	var resp representResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.FacesCount == 0 || len(resp.Faces) == 0 {
		return nil, ErrNoFace
	}

	// Faces come ordered by detection score; the first is the most prominent.
	face := resp.Faces[0]
	if len(face.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	return &EmbeddingResult{
		Embedding: face.Embedding,
		Dim:       face.Dim,
		DetScore:  face.DetScore,
		Model:     resp.Model,
	}, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
