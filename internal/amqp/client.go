package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	prefetchCount  = 8
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Client publishes and consumes recommendation messages on one direct exchange
// with a request queue and a result queue. Publishing goes through a circuit
// breaker; consuming reconnects with exponential backoff.
type Client struct {
	url           string
	exchangeName  string
	queueName     string // request queue
	resultQueue   string
	consumerLabel string
	requeueDelay  time.Duration
	logger        *log.Logger

	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	lastFailure time.Time

	failureCount int64
	state        int32
}

// NewClient dials the broker and declares the exchange and both queues.
func NewClient(url, exchangeName, requestQueue, resultQueue string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default(log.ComponentAMQP)
	}
	c := &Client{
		url:           url,
		exchangeName:  exchangeName,
		queueName:     requestQueue,
		resultQueue:   resultQueue,
		consumerLabel: "fintrack",
		requeueDelay:  baseBackoff,
		logger:        logger,
	}

	c.mu.Lock()
	err := c.connectLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) log() *log.Logger {
	if c.logger == nil {
		return log.Discard()
	}
	return c.logger
}

// connectLocked dials a new connection and publish channel; c.mu must be held.
func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.queueName, c.resultQueue} {
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key is the queue name on a direct exchange
		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// ensureConnection reconnects when the connection or publish channel is gone.
func (c *Client) ensureConnection() (*amqp091.Connection, *amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.conn, c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, nil, err
	}
	c.log().Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.conn, c.channel, nil
}

// PublishRecommendationRequest queues a request for the worker.
func (c *Client) PublishRecommendationRequest(ctx context.Context, req *RecommendationRequest) error {
	body, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}

	c.log().InfoContext(ctx, "Published recommendation request",
		log.FieldUserID, req.UserID,
		"request_id", req.RequestID,
		log.FieldQueue, c.queueName)
	return nil
}

// PublishRecommendationResult publishes computed recommendations.
func (c *Client) PublishRecommendationResult(ctx context.Context, res *RecommendationResult) error {
	body, err := res.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.resultQueue, body); err != nil {
		return err
	}

	c.log().DebugContext(ctx, "Published recommendation result",
		log.FieldUserID, res.UserID,
		"request_id", res.RequestID,
		log.FieldCount, len(res.Recommendations))
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: circuit breaker is open", routingKey)
	}

	_, ch, err := c.ensureConnection()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeRecommendationRequests blocks until ctx is cancelled, handing each
// decoded request to handler.
func (c *Client) ConsumeRecommendationRequests(ctx context.Context, handler func(context.Context, *RecommendationRequest) error) error {
	return c.consume(ctx, c.queueName, func(ctx context.Context, body []byte) error {
		req, err := RecommendationRequestFromJSON(body)
		if err != nil {
			return err
		}
		return handler(ctx, req)
	})
}

// ConsumeRecommendationResults blocks until ctx is cancelled, handing each
// decoded result to handler.
func (c *Client) ConsumeRecommendationResults(ctx context.Context, handler func(context.Context, *RecommendationResult) error) error {
	return c.consume(ctx, c.resultQueue, func(ctx context.Context, body []byte) error {
		res, err := RecommendationResultFromJSON(body)
		if err != nil {
			return err
		}
		return handler(ctx, res)
	})
}

// consume keeps a consumer running across broker restarts.
func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, queue, handle, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", log.FieldQueue, queue, "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "AMQP consumer lost connection, retrying",
			log.FieldQueue, queue,
			log.FieldError, err,
			"attempt", attempt,
			"backoff", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handle func(context.Context, []byte) error, started func()) error {
	conn, _, err := c.ensureConnection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,           // queue
		c.consumerLabel, // consumer
		false,           // auto-ack (we want manual ack)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	started()
	c.log().InfoContext(ctx, "Started consuming messages", log.FieldQueue, queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, delivery, delivery.Body, delivery.Redelivered, handle)
		}
	}
}

// acknowledger is the part of amqp091.Delivery dispatch needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// dispatch settles one delivery. Successes are acknowledged and malformed
// messages dropped. A handler failure is requeued once after requeueDelay; a
// message that fails again on redelivery is dropped.
func (c *Client) dispatch(ctx context.Context, d acknowledger, body []byte, redelivered bool, handle func(context.Context, []byte) error) {
	err := handle(ctx, body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log().WarnContext(ctx, "Failed to ack message", log.FieldError, ackErr)
		}
	case errors.Is(err, ErrMalformed):
		c.log().ErrorContext(ctx, "Dropping malformed message", log.FieldError, err)
		_ = d.Nack(false, false) // reject and don't requeue
	case redelivered:
		c.log().ErrorContext(ctx, "Dropping message after repeated failure", log.FieldError, err)
		_ = d.Nack(false, false)
	default:
		c.log().ErrorContext(ctx, "Failed to handle message, requeueing",
			log.FieldError, err,
			"delay", c.requeueDelay.String())
		if c.requeueDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.requeueDelay):
			}
		}
		_ = d.Nack(false, true) // reject and requeue
	}
}

// Circuit breaker

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()

	if time.Since(last) > openTimeout {
		// Let one trial call through
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, errDeliveriesClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
