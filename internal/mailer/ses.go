package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESConfig holds the settings for the AWS SES v2 transport. Empty
// credentials fall back to the default AWS credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the sesv2 SendEmail surface, extracted for mocking.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES delivers payloads through the AWS SES v2 API. Messages with
// attachments are sent as raw MIME; plain messages use the simple content
// format.
type SES struct {
	client SendEmailAPI
}

// NewSES creates an SES mailer from config, loading the AWS SDK
// configuration for the given region.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SES{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewSESWithClient creates an SES mailer with a custom client, for tests.
func NewSESWithClient(client SendEmailAPI) *SES {
	return &SES{client: client}
}

func (s *SES) Name() string { return "ses" }

// Send builds the SES input from the payload and calls SendEmail once.
// Retry policy belongs to the caller's re-queue decision, not the mailer.
func (s *SES) Send(ctx context.Context, p *Payload) error {
	input, err := buildSESInput(p)
	if err != nil {
		return &Error{Mailer: s.Name(), Message: err.Error(), Permanent: true}
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return &Error{Mailer: s.Name(), Message: err.Error()}
	}
	return nil
}

// HealthCheck is a no-op: the SES API has no cheap liveness call and
// credentials are verified on the first send.
func (s *SES) HealthCheck(_ context.Context) error {
	return nil
}

func buildSESInput(p *Payload) (*sesv2.SendEmailInput, error) {
	if len(p.Attachments) > 0 {
		raw, err := buildMIME(p)
		if err != nil {
			return nil, fmt.Errorf("build raw message: %w", err)
		}
		return &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(p.From),
			Destination:      destinationFromPayload(p),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}, nil
	}

	body := &types.Body{
		Text: &types.Content{
			Data:    aws.String(p.TextBody),
			Charset: aws.String("UTF-8"),
		},
		Html: &types.Content{
			Data:    aws.String(p.HTMLBody),
			Charset: aws.String("UTF-8"),
		},
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.From),
		Destination:      destinationFromPayload(p),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(p.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}, nil
}

func destinationFromPayload(p *Payload) *types.Destination {
	return &types.Destination{
		ToAddresses:  splitAddresses(p.To),
		CcAddresses:  splitAddresses(p.Cc),
		BccAddresses: splitAddresses(p.Bcc),
	}
}

func splitAddresses(joined string) []string {
	var out []string
	for _, addr := range strings.Split(joined, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
