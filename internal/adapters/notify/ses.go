package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// SESClient is the subset of the SES API the sender needs.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

// SESSender delivers rendered messages through Amazon SES.
type SESSender struct {
	client   SESClient
	renderer *Renderer
	from     string
	replyTo  string
}

func NewSESSender(client SESClient, renderer *Renderer, from, replyTo string) *SESSender {
	return &SESSender{client: client, renderer: renderer, from: from, replyTo: replyTo}
}

func (s *SESSender) Send(ctx context.Context, msg notifier.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return notifier.ErrNoRecipient
	}
	r, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(r.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(r.HTML), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(r.Text), Charset: aws.String("UTF-8")},
			},
		},
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
