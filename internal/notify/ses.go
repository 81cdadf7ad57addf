package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/hostops/concierge/internal/config"
)

// SESMailer delivers staff alert email through AWS SES v2.
type SESMailer struct {
	client     *sesv2.Client
	from       string
	recipients []string
}

// NewSESMailer builds the mailer from config. Static credentials are used
// when configured; otherwise the default AWS chain applies.
func NewSESMailer(ctx context.Context, cfg appconfig.SESConfig) (*SESMailer, error) {
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

	return &SESMailer{
		client:     sesv2.NewFromConfig(awsCfg),
		from:       cfg.FromAddress,
		recipients: cfg.AlertRecipients,
	}, nil
}

// SendAlert emails the configured alert recipients.
func (m *SESMailer) SendAlert(ctx context.Context, subject, body string) error {
	if len(m.recipients) == 0 {
		return fmt.Errorf("ses: no alert recipients configured")
	}

	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: m.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

var _ AlertMailer = (*SESMailer)(nil)
