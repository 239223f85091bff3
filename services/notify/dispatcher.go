package notify

import (
	"context"
	"errors"

	"campaignhub-botgateway/pkg/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

var Module = fx.Module("notify.module",
	fx.Provide(
		fx.Annotate(NewDispatcher, fx.As(new(Sender))),
		NewReplier,
	),
)

var sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botgateway_outbound_messages_total",
	Help: "Outbound platform sends by outcome.",
}, []string{"outcome"})

type OutcomeKind string

const (
	OutcomeDelivered      OutcomeKind = "delivered"
	OutcomeRejected       OutcomeKind = "rejected"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// Outcome is the result of one send. Reason is the platform description for
// rejections and the error text for transport failures.
type Outcome struct {
	Kind      OutcomeKind
	Reason    string
	MessageID int64
}

func Delivered(messageID int64) Outcome {
	return Outcome{Kind: OutcomeDelivered, MessageID: messageID}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func TransportError(msg string) Outcome {
	return Outcome{Kind: OutcomeTransportError, Reason: msg}
}

func (o Outcome) Delivered() bool { return o.Kind == OutcomeDelivered }

// Sender sends formatted text to a destination without ever failing the
// caller.
type Sender interface {
	Send(ctx context.Context, token, destination, text string, opts ...telegram.SendOption) Outcome
}

type Dispatcher struct {
	client telegram.Client
}

func NewDispatcher(client telegram.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) Send(ctx context.Context, token, destination, text string, opts ...telegram.SendOption) Outcome {
	out := d.send(ctx, token, destination, text, opts...)
	sendsTotal.WithLabelValues(string(out.Kind)).Inc()
	return out
}

func (d *Dispatcher) send(ctx context.Context, token, destination, text string, opts ...telegram.SendOption) Outcome {
	if destination == "" {
		return Rejected("no destination")
	}
	if token == "" {
		return Rejected("organization has no bot credential")
	}

	resp, err := d.client.SendMessage(ctx, token, destination, text, opts...)
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) {
			return TransportError("timed out")
		}
		return TransportError(err.Error())
	case resp == nil:
		return TransportError("empty response")
	case !resp.OK:
		if resp.Description == "" {
			return Rejected("rejected by platform")
		}
		return Rejected(resp.Description)
	}

	var id int64
	if resp.Result != nil {
		id = resp.Result.MessageID
	}
	return Delivered(id)
}
