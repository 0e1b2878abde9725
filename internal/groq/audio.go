package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe submits a recorded audio segment to the Whisper endpoint and
// returns the trimmed transcript. The bytes are sent as-is; the browser
// client records webm/opus which Whisper accepts natively.
func (c *Client) Transcribe(ctx context.Context, audio []byte, model string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "segment.webm")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.WriteField("model", model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	body, err := c.do(ctx, "/openai/v1/audio/transcriptions", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var resp transcriptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Speech synthesizes text and returns the raw audio bytes plus a mime
// type derived from the container format.
func (c *Client) Speech(ctx context.Context, model, voice, input, responseFormat string) ([]byte, string, error) {
	mime := "audio/" + responseFormat

	payload, err := json.Marshal(speechRequest{
		Model:          model,
		Voice:          voice,
		Input:          input,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return nil, mime, fmt.Errorf("marshal speech request: %w", err)
	}

	audio, err := c.do(ctx, "/openai/v1/audio/speech", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, mime, err
	}
	return audio, mime, nil
}
