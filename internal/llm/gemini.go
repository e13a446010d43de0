package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient reasons with Google's Gemini models.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient connects to Gemini. An empty apiKey yields ErrNotConfigured.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Name identifies the backend in logs and metrics.
func (g *GeminiClient) Name() string { return "gemini" }

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Complete sends the system instruction and user prompt and returns the text
// of the first candidate.
func (g *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrNotConfigured
	}
	m := g.client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"
	m.SetMaxOutputTokens(300)
	m.SystemInstruction = genai.NewUserContent(genai.Text(system))

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return b.String(), nil
}

// classifyGeminiError turns service-side rejections into *StatusError and
// leaves transport failures wrapped as they are.
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{Provider: "gemini", Code: gerr.Code, Body: truncate(gerr.Message, 200)}
	}
	if st, ok := status.FromError(err); ok {
		if code := httpStatusFromGRPC(st.Code()); code != 0 {
			return &StatusError{Provider: "gemini", Code: code, Body: truncate(st.Message(), 200)}
		}
	}
	return fmt.Errorf("gemini call: %w", err)
}

// httpStatusFromGRPC maps service rejections to HTTP codes. Codes that mean
// the call never completed map to 0.
func httpStatusFromGRPC(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.ResourceExhausted:
		return 429
	case codes.Internal:
		return 500
	case codes.Unavailable:
		return 503
	default:
		return 0
	}
}
