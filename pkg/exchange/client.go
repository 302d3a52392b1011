package exchange

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/go-go-golems/supportchat/pkg/events"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultEndpoint = "http://localhost:8000/chat"
	DefaultTimeout  = 60 * time.Second

	EmptyReplyText = "Sorry, I received an empty response."
)

// Client sends one exchange to the answering service per Send call.
// It never retries and never streams.
type Client struct {
	endpoint   string
	httpClient *http.Client
	rest       *resty.Client
	timeout    time.Duration
	publisher  *events.PublisherManager
}

var _ conversation.Sender = &Client{}

type ClientOption func(*Client)

// WithHTTPClient sets the transport used underneath resty.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout bounds each exchange. Zero disables the deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = d
	}
}

// WithPublisherManager makes the client publish exchange lifecycle events.
func WithPublisherManager(pm *events.PublisherManager) ClientOption {
	return func(client *Client) {
		client.publisher = pm
	}
}

func NewClient(endpoint string, options ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ret := &Client{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
	}
	for _, o := range options {
		o(ret)
	}

	if ret.httpClient != nil {
		ret.rest = resty.NewWithClient(ret.httpClient)
	} else {
		ret.rest = resty.New()
	}
	ret.rest.
		SetLogger(newRestyLogger()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return ret
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send performs the exchange and always returns a settled result. Failures
// are logged and reported through the result, never returned as errors.
func (c *Client) Send(ctx context.Context, utterance string, history conversation.Transcript) conversation.Result {
	start := time.Now()
	md := events.EventMetadata{
		RequestID:  uuid.New(),
		Endpoint:   c.endpoint,
		HistoryLen: len(history),
		Time:       start,
	}
	logger := log.With().Str("component", "exchange-client").Logger()

	c.publisher.PublishBlind(events.NewExchangeStartEvent(md, utterance))

	reply, err := c.post(ctx, NewRequest(utterance, history))
	duration := time.Since(start)

	if err != nil {
		var e *Error
		kind, statusCode := FailureTransport, 0
		if errors.As(err, &e) {
			kind, statusCode = e.Kind, e.StatusCode
		}
		logger.Error().
			Err(err).
			Object("meta", md).
			Str("kind", string(kind)).
			Int("status_code", statusCode).
			Dur("duration", duration).
			Msg("exchange failed")
		c.publisher.PublishBlind(events.NewExchangeFailureEvent(md, string(kind), err, statusCode, duration))
		return conversation.NewFailureResult(err)
	}

	empty := reply == ""
	if empty {
		logger.Warn().Object("meta", md).Msg("answering service returned an empty response")
		reply = EmptyReplyText
	}

	logger.Debug().
		Object("meta", md).
		Dur("duration", duration).
		Int("reply_len", len(reply)).
		Msg("exchange succeeded")
	c.publisher.PublishBlind(events.NewExchangeReplyEvent(md, reply, empty, duration))

	return conversation.NewReplyResult(reply)
}

func (c *Client) post(ctx context.Context, request *Request) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", &Error{Kind: FailureEncode, Err: errors.Wrap(err, "could not encode request")}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return "", classifyTransportError(ctx, errors.Wrap(err, "could not reach answering service"))
	}

	if !resp.IsSuccess() {
		return "", &Error{
			Kind:       FailureStatus,
			StatusCode: resp.StatusCode(),
			Err:        errors.Errorf("HTTP error! status: %d", resp.StatusCode()),
		}
	}

	var response *Response
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return "", &Error{Kind: FailureDecode, Err: errors.Wrap(err, "could not decode response")}
	}
	if response == nil {
		return "", &Error{Kind: FailureDecode, Err: errors.New("response body is null")}
	}

	return response.Response, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: FailureTimeout, Err: err}
	}
	return &Error{Kind: FailureTransport, Err: err}
}
