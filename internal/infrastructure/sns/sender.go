package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/infrastructure/awsconf"
)

// API is the subset of the SNS client the notifier uses.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends a copy of the verification OTP as a transactional SMS.
// Other topics are email only.
type Notifier struct {
	client API
}

func NewClient(ctx context.Context, cfg config.AWS, region string) (*sns.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, region)
	if err != nil {
		return nil, fmt.Errorf("sns client: %w", err)
	}
	clientOpts := []func(*sns.Options){}
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

func NewNotifier(client API) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Name() string { return "sms" }

func (n *Notifier) Send(ctx context.Context, m notification.Message) error {
	if m.Topic != notification.TopicOTP || m.Mobile == "" {
		return nil
	}
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(m.Mobile),
		Message:     aws.String(fmt.Sprintf("Your Unifiro verification code is %s", m.OTP)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
