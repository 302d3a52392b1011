package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeExchangeStart   EventType = "exchange-start"
	EventTypeExchangeReply   EventType = "exchange-reply"
	EventTypeExchangeFailure EventType = "exchange-failure"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies the exchange an event belongs to.
type EventMetadata struct {
	RequestID  uuid.UUID `json:"request_id"`
	Endpoint   string    `json:"endpoint,omitempty"`
	HistoryLen int       `json:"history_len"`
	Time       time.Time `json:"time"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("request_id", em.RequestID.String())
	if em.Endpoint != "" {
		e.Str("endpoint", em.Endpoint)
	}
	e.Int("history_len", em.HistoryLen)
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// raw JSON, only set when the event was decoded by NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventExchangeStart struct {
	EventImpl
	Utterance string `json:"utterance"`
}

func NewExchangeStartEvent(metadata EventMetadata, utterance string) *EventExchangeStart {
	return &EventExchangeStart{
		EventImpl: EventImpl{Type_: EventTypeExchangeStart, Metadata_: metadata},
		Utterance: utterance,
	}
}

type EventExchangeReply struct {
	EventImpl
	Reply      string `json:"reply"`
	Empty      bool   `json:"empty,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func NewExchangeReplyEvent(metadata EventMetadata, reply string, empty bool, d time.Duration) *EventExchangeReply {
	return &EventExchangeReply{
		EventImpl:  EventImpl{Type_: EventTypeExchangeReply, Metadata_: metadata},
		Reply:      reply,
		Empty:      empty,
		DurationMs: d.Milliseconds(),
	}
}

type EventExchangeFailure struct {
	EventImpl
	Kind       string `json:"kind"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func NewExchangeFailureEvent(metadata EventMetadata, kind string, err error, statusCode int, d time.Duration) *EventExchangeFailure {
	errString := ""
	if err != nil {
		errString = err.Error()
	}
	return &EventExchangeFailure{
		EventImpl:  EventImpl{Type_: EventTypeExchangeFailure, Metadata_: metadata},
		Kind:       kind,
		Error:      errString,
		StatusCode: statusCode,
		DurationMs: d.Milliseconds(),
	}
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil || ret == nil {
		return nil, false
	}

	return ret, true
}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeExchangeStart:
		ret, ok := ToTypedEvent[EventExchangeStart](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventExchangeStart")
		}
		ret.payload = b
		return ret, nil
	case EventTypeExchangeReply:
		ret, ok := ToTypedEvent[EventExchangeReply](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventExchangeReply")
		}
		ret.payload = b
		return ret, nil
	case EventTypeExchangeFailure:
		ret, ok := ToTypedEvent[EventExchangeFailure](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventExchangeFailure")
		}
		ret.payload = b
		return ret, nil
	}

	return e, nil
}
