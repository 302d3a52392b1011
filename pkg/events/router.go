package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TopicExchange = "exchange"

type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		r.logger = NewWatermillLogger(log.Logger)
	}
}

// NewEventRouter creates an in-process router backed by a gochannel pubsub.
func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

// LogEventsFunc writes every exchange event to logger. Undecodable payloads
// are logged and skipped.
func LogEventsFunc(logger zerolog.Logger) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
			return nil
		}

		switch e_ := e.(type) {
		case *EventExchangeStart:
			logger.Info().Object("meta", e_.Metadata_).Str("utterance", e_.Utterance).Msg("exchange started")
		case *EventExchangeReply:
			logger.Info().Object("meta", e_.Metadata_).
				Int64("duration_ms", e_.DurationMs).
				Bool("empty", e_.Empty).
				Int("reply_len", len(e_.Reply)).
				Msg("exchange replied")
		case *EventExchangeFailure:
			logger.Warn().Object("meta", e_.Metadata_).
				Int64("duration_ms", e_.DurationMs).
				Str("kind", e_.Kind).
				Int("status_code", e_.StatusCode).
				Str("error", e_.Error).
				Msg("exchange failed")
		default:
			logger.Debug().Str("type", string(e.Type())).Msg("unhandled event")
		}

		return nil
	}
}

// DumpRawEventsFunc writes each event as indented JSON to w.
func DumpRawEventsFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		var s map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			return err
		}
		s_, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(s_))
		return err
	}
}
