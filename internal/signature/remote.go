package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// RemoteEmbedder posts the preprocessed image to a model server and expects
// {"embedding": [...]} in return.
type RemoteEmbedder struct {
	Endpoint string
	Client   *http.Client
}

func NewRemoteEmbedder(endpoint string) *RemoteEmbedder {
	return &RemoteEmbedder{Endpoint: endpoint, Client: &http.Client{}}
}

// maxResponseBytes bounds the embedding response body.
const maxResponseBytes = 8 << 20

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *RemoteEmbedder) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, err
	}
	if err := png.Encode(part, Preprocess(img)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	var out embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding server returned an empty vector")
	}
	return out.Embedding, nil
}
