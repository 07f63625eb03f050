package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// MediaPart references chunk media either inline or through an uploaded file.
type MediaPart struct {
	MimeType string
	Data     []byte
	FileURI  string
}

// Inline reports whether the part carries its bytes.
func (m MediaPart) Inline() bool { return len(m.Data) > 0 }

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
	FileData   *fileData   `json:"file_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *Usage `json:"usageMetadata,omitempty"`
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"promptTokenCount"`
	CandidatesTokens int `json:"candidatesTokenCount"`
	TotalTokens      int `json:"totalTokenCount"`
}

// Generation is the text returned by one generateContent call.
type Generation struct {
	Text         string
	FinishReason string
	Usage        Usage
}

type emptyContentError struct {
	FinishReason string
	BlockReason  string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, block_reason=%q)", e.FinishReason, e.BlockReason)
}

// GenerateJSON asks the model to answer prompt about media with a JSON body.
// Empty candidates are reported as malformed responses.
func (c *Client) GenerateJSON(ctx context.Context, media MediaPart, prompt string) (Generation, error) {
	if c.cfg.APIKey == "" {
		return Generation{}, services.Wrap(services.ErrInvalidConfiguration, "analysis", "generate", "api key required", nil)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Generation{}, errors.New("generate: prompt required")
	}
	mediaPart := part{}
	switch {
	case media.Inline():
		mediaPart.InlineData = &inlineData{MimeType: media.MimeType, Data: base64.StdEncoding.EncodeToString(media.Data)}
	case media.FileURI != "":
		mediaPart.FileData = &fileData{MimeType: media.MimeType, FileURI: media.FileURI}
	default:
		return Generation{}, errors.New("generate: media part required")
	}

	payload := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{mediaPart, {Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMimeType: "application/json",
		},
	}
	var resp generateResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("models", c.cfg.Model+":generateContent"), payload, &resp, "generate"); err != nil {
		return Generation{}, err
	}

	gen := Generation{}
	if resp.UsageMetadata != nil {
		gen.Usage = *resp.UsageMetadata
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if gen.FinishReason == "" {
			gen.FinishReason = cand.FinishReason
		}
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	gen.Text = strings.TrimSpace(text.String())
	if gen.Text == "" {
		empty := &emptyContentError{FinishReason: gen.FinishReason}
		if resp.PromptFeedback != nil {
			empty.BlockReason = resp.PromptFeedback.BlockReason
		}
		return gen, services.Wrap(services.ErrMalformedResponse, "analysis", "generate", "", empty)
	}
	return gen, nil
}
