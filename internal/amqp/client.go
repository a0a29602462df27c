package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"milex/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second

	// directReplyTo is RabbitMQ's pseudo-queue for request/reply without
	// declaring a reply queue per caller.
	directReplyTo = "amq.rabbitmq.reply-to"
)

var (
	errCircuitOpen      = errors.New("circuit breaker is open")
	errDeliveriesClosed = errors.New("delivery channel closed")
)

type Config struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// Handler answers one query. It never fails: errors travel in the response.
type Handler func(ctx context.Context, req *QueryRequest) *QueryResponse

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Client is both ends of the query protocol: Serve consumes requests and
// publishes replies, Query sends a request and waits for its reply.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	prefetch     int
	logger       *log.Logger

	mu             sync.Mutex
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	repliesStarted bool

	pendingMu sync.Mutex
	pending   map[string]chan *QueryResponse

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		prefetch:     cfg.Prefetch,
		logger:       logger.WithComponent(log.ComponentAMQP),
		pending:      make(map[string]chan *QueryResponse),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

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
	if err := setup(channel, c.exchangeName, c.queueName, c.prefetch); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel, c.repliesStarted = conn, channel, false
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string, prefetch int) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key equals the queue name on the direct exchange.
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	return nil
}

func (c *Client) reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return c.connectLocked()
}

func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil, amqp091.ErrClosed
	}
	return c.channel, nil
}

// Serve consumes query requests until ctx is done, reconnecting with
// exponential backoff when the broker goes away.
func (c *Client) Serve(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.serveOnce(ctx, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "AMQP consumer interrupted, reconnecting",
			log.FieldError, err, "attempt", attempt, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.reconnect(); err != nil {
			c.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) serveOnce(ctx context.Context, handler Handler) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming query messages", "queue", c.queueName, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, ch, d, handler)
		}
	}
}

// handleDelivery acks once the reply is published. Undecodable bodies and
// requests without a reply address are dropped; a failed reply is requeued.
func (c *Client) handleDelivery(ctx context.Context, pub publisher, d amqp091.Delivery, handler Handler) {
	logger := c.logger.With(log.FieldCorrelationID, d.CorrelationId)

	req, err := QueryRequestFromJSON(d.Body)
	if err != nil {
		logger.WarnContext(ctx, "Rejecting malformed query message", log.FieldError, err)
		_ = d.Nack(false, false)
		return
	}
	if d.ReplyTo == "" {
		logger.WarnContext(ctx, "Rejecting query message without reply address", log.FieldOperation, req.Operation)
		_ = d.Nack(false, false)
		return
	}

	var resp *QueryResponse
	if err := req.Validate(); err != nil {
		resp = NewFailure(err)
	} else {
		resp = handler(log.NewContext(ctx, logger), req)
	}

	body, err := resp.ToJSON()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode reply", log.FieldError, err)
		_ = d.Nack(false, false)
		return
	}
	err = c.publish(ctx, pub, "", d.ReplyTo, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish reply", log.FieldError, err, log.FieldOperation, req.Operation)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
	logger.DebugContext(ctx, "Answered query", log.FieldOperation, req.Operation, log.FieldSuccess, resp.OK)
}

// Query publishes req and waits for the matching reply or ctx.
func (c *Client) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := req.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	ch, err := c.startReplies()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	wait := make(chan *QueryResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = wait
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	err = c.publish(ctx, ch, c.exchangeName, c.queueName, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       directReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Published query", log.FieldOperation, req.Operation, log.FieldCorrelationID, id)

	select {
	case resp := <-wait:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startReplies consumes the direct reply-to pseudo-queue once per channel.
// RabbitMQ requires the consumer to exist before the first publish.
func (c *Client) startReplies() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil, amqp091.ErrClosed
	}
	if c.repliesStarted {
		return c.channel, nil
	}
	replies, err := c.channel.Consume(directReplyTo, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume replies: %w", err)
	}
	c.repliesStarted = true
	go func() {
		for d := range replies {
			c.dispatchReply(d)
		}
	}()
	return c.channel, nil
}

func (c *Client) dispatchReply(d amqp091.Delivery) {
	c.pendingMu.Lock()
	wait, ok := c.pending[d.CorrelationId]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("Dropping reply with unknown correlation id", log.FieldCorrelationID, d.CorrelationId)
		return
	}
	resp, err := QueryResponseFromJSON(d.Body)
	if err != nil {
		resp = NewFailure(fmt.Errorf("decode reply: %w", err))
	}
	select {
	case wait <- resp:
	default:
	}
}

func (c *Client) publish(ctx context.Context, pub publisher, exchange, key string, msg amqp091.Publishing) error {
	if c.isCircuitOpen() {
		return errCircuitOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := pub.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
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
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}
