package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/hostops/concierge/internal/config"
)

// BedrockClient drafts through AWS Bedrock (Anthropic messages API).
// Useful when traffic must stay inside the operator's AWS account.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
	region  string
}

// NewBedrockClient builds a Bedrock-backed client. Static credentials are
// used when configured; otherwise the default AWS chain applies.
func NewBedrockClient(ctx context.Context, cfg appconfig.BedrockConfig) (*BedrockClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	log.Printf("[BedrockClient] initialized model=%s region=%s", cfg.ModelID, cfg.Region)
	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
		region:  cfg.Region,
	}, nil
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Chat sends one exchange through InvokeModel.
func (b *BedrockClient) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	if b.modelID == "" {
		return "", ErrNotConfigured
	}

	reqBody := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           system,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: user}}},
		},
		Temperature: temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        jsonBody,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock invoke: parse response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("bedrock invoke: empty content")
	}
	return resp.Content[0].Text, nil
}

var _ Client = (*BedrockClient)(nil)
