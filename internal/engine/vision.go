package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
	"google.golang.org/genai"
)

const maxLabels = 10

// CloudVisionLabeler implements Labeler with Google Cloud Vision label detection.
type CloudVisionLabeler struct {
	svc *vision.Service
}

// NewCloudVisionLabeler creates a Cloud Vision client. Credentials come from
// opts (for example option.WithAPIKey) or from Application Default Credentials.
func NewCloudVisionLabeler(ctx context.Context, opts ...option.ClientOption) (*CloudVisionLabeler, error) {
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &CloudVisionLabeler{svc: svc}, nil
}

// Detect returns label descriptions in the order the service ranks them.
func (l *CloudVisionLabeler) Detect(ctx context.Context, image []byte) ([]string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "LABEL_DETECTION", MaxResults: maxLabels}},
		}},
	}
	resp, err := l.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &apiError{StatusCode: gerr.Code, Body: gerr.Message}
		}
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, &apiError{StatusCode: http.StatusBadGateway, Body: r.Error.Message}
	}

	labels := make([]string, 0, len(r.LabelAnnotations))
	for _, a := range r.LabelAnnotations {
		if d := strings.TrimSpace(a.Description); d != "" {
			labels = append(labels, d)
		}
	}
	return labels, nil
}

// GeminiLabeler implements Labeler by asking a multimodal Gemini model to name
// the objects in the image.
type GeminiLabeler struct {
	client *genai.Client
	model  string
}

// NewGeminiLabeler creates a Gemini-backed labeler.
func NewGeminiLabeler(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiLabeler, error) {
	client, s, err := newGenaiClient(ctx, apiKey, opts)
	if err != nil {
		return nil, err
	}
	return &GeminiLabeler{client: client, model: s.model}, nil
}

func (l *GeminiLabeler) Detect(ctx context.Context, image []byte) ([]string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(detectPrompt),
		{InlineData: &genai.Blob{Data: image, MIMEType: http.DetectContentType(image)}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	text, err := generateText(ctx, l.client, l.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return parseLabelList(text)
}

// parseLabelList decodes a JSON array of names, dropping blanks.
func parseLabelList(text string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &names); err != nil {
		return nil, fmt.Errorf("failed to parse label list: %w (response: %s)", err, text)
	}
	labels := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			labels = append(labels, n)
		}
	}
	return labels, nil
}
