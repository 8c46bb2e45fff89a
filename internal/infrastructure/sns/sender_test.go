package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiro-api/internal/application/notification"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestNotifier_SendsOTPBySMS(t *testing.T) {
	api := new(mockAPI)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.PhoneNumber == "+919876543210" &&
			*in.Message == "Your Unifiro verification code is 123456" &&
			*in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue == "Transactional"
	})).Return(&sns.PublishOutput{}, nil)

	err := NewNotifier(api).Send(context.Background(), notification.Message{
		Topic:  notification.TopicOTP,
		Mobile: "+919876543210",
		OTP:    "123456",
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestNotifier_SkipsOtherTopicsAndMissingMobile(t *testing.T) {
	api := new(mockAPI)
	n := NewNotifier(api)

	require.NoError(t, n.Send(context.Background(), notification.Message{Topic: notification.TopicPasswordReset, Mobile: "+1"}))
	require.NoError(t, n.Send(context.Background(), notification.Message{Topic: notification.TopicOTP}))
	api.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNotifier_PublishError(t *testing.T) {
	api := new(mockAPI)
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewNotifier(api).Send(context.Background(), notification.Message{Topic: notification.TopicOTP, Mobile: "+1", OTP: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
