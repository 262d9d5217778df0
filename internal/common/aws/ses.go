// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client the alert sink needs.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESClient emails alerts to a fixed distribution list.
type SESClient struct {
	client SESAPI
	from   string
	to     []string
}

func NewSESClient(ctx context.Context, region, from string, to []string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSESClientWithAPI(ses.NewFromConfig(cfg), from, to), nil
}

func NewSESClientWithAPI(api SESAPI, from string, to []string) *SESClient {
	return &SESClient{client: api, from: from, to: to}
}

func (s *SESClient) Name() string { return "ses" }

// SendAlert sends a plain-text email.
func (s *SESClient) SendAlert(ctx context.Context, subject, body string) error {
	if len(s.to) == 0 {
		return fmt.Errorf("ses alert: no recipients configured")
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: s.to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
