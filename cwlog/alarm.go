package cwlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cockroachdb/errors"
)

// Alarm raises an operator alarm for a log delivery failure.
type Alarm interface {
	Raise(ctx context.Context, err error) error
}

// SendMessageAPI is the part of the SQS client used by [SQSAlarm].
type SendMessageAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSAlarm publishes delivery failures to an SQS queue.
type SQSAlarm struct {
	client   SendMessageAPI
	queueURL string
	service  string
	now      func() time.Time
}

// NewSQSAlarm inits an alarm publishing to queueURL.
func NewSQSAlarm(client SendMessageAPI, queueURL, service string) *SQSAlarm {
	return &SQSAlarm{client: client, queueURL: queueURL, service: service, now: time.Now}
}

type alarmMessage struct {
	Service   string    `json:"service"`
	Time      time.Time `json:"time"`
	LogGroup  string    `json:"log_group,omitempty"`
	LogStream string    `json:"log_stream,omitempty"`
	Records   int       `json:"records,omitempty"`
	Error     string    `json:"error"`
}

// Raise implements [Alarm].
func (a *SQSAlarm) Raise(ctx context.Context, cause error) error {
	msg := alarmMessage{Service: a.service, Time: a.now().UTC(), Error: cause.Error()}

	var derr *reqlog.DeliveryError
	if errors.As(cause, &derr) {
		msg.LogGroup, msg.LogStream, msg.Records = derr.LogGroup, derr.LogStream, derr.Records
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode alarm")
	}

	if _, err := a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(a.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return errors.Wrap(err, "failed to send alarm")
	}

	return nil
}
