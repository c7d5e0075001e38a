// Package notify alerts operators about terminal submission failures.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/yukimura/storypost/submission"
)

// SMSNotifier sends a short SMS when a run ends FAILED, so operators
// learn about credential problems without tailing logs. Twilio
// credentials come from TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN in the
// environment; only the routing numbers live in configuration.
type SMSNotifier struct {
	client     *twilio.RestClient
	fromNumber string
	toNumber   string
	logger     *slog.Logger
}

func NewSMS(fromNumber, toNumber string, logger *slog.Logger) *SMSNotifier {
	return &SMSNotifier{
		client:     twilio.NewRestClient(),
		fromNumber: fromNumber,
		toNumber:   toNumber,
		logger:     logger,
	}
}

func (n *SMSNotifier) SubmissionFailed(ctx context.Context, res *submission.Result) {
	body := fmt.Sprintf("storypost: submission FAILED (%s at %s) fingerprint=%s attempts=%d",
		res.ErrorKind, res.LastState, res.Fingerprint, res.Attempts)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.toNumber)
	params.SetFrom(n.fromNumber)
	params.SetBody(body)

	message, err := n.client.Api.CreateMessage(params)
	if err != nil {
		n.logger.Error("failed to send failure SMS",
			slog.String("error", err.Error()),
			slog.String("to", n.toNumber))
		return
	}
	n.logger.Info("failure SMS sent", slog.String("message_sid", *message.Sid))
}
