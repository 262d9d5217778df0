// Package notify delivers invocation outcomes to the workflow webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	httpclient "esign-workers/internal/common/http"
	"esign-workers/internal/common/logger"
	"esign-workers/internal/common/metrics"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 15 * time.Second

	// MaxWait caps a single wait between attempts.
	MaxWait = 24 * time.Hour
)

// AlertSink receives a short alert when the webhook could not be reached.
type AlertSink interface {
	Name() string
	SendAlert(ctx context.Context, subject, body string) error
}

// Result reports what happened to one dispatch. Dispatching never fails the caller.
type Result struct {
	Delivered  bool          `json:"delivered"`
	Attempts   int           `json:"attempts"`
	StatusCode int           `json:"statusCode,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

type Dispatcher struct {
	http           *httpclient.Client
	log            logger.Logger
	baseDelay      time.Duration
	attemptTimeout time.Duration
	userAgent      string
	newTimer       func() backoff.Timer
	now            func() time.Time
	sinks          []AlertSink
}

type Option func(*Dispatcher)

func WithBaseDelay(d time.Duration) Option {
	return func(di *Dispatcher) { di.baseDelay = d }
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(di *Dispatcher) { di.attemptTimeout = d }
}

func WithUserAgent(ua string) Option {
	return func(di *Dispatcher) { di.userAgent = ua }
}

// WithTimer replaces the wait between attempts; tests use a timer that fires immediately.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(di *Dispatcher) { di.newTimer = newTimer }
}

func WithClock(now func() time.Time) Option {
	return func(di *Dispatcher) { di.now = now }
}

func WithAlertSinks(sinks ...AlertSink) Option {
	return func(di *Dispatcher) { di.sinks = append(di.sinks, sinks...) }
}

func NewDispatcher(client *httpclient.Client, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		http:           client,
		log:            log,
		baseDelay:      DefaultBaseDelay,
		attemptTimeout: DefaultAttemptTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// newBackOff waits base*2^n after attempt n fails, for at most maxAttempts-1 waits.
func (d *Dispatcher) newBackOff(ctx context.Context, maxAttempts int) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * d.baseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = maxInterval(d.baseDelay, maxAttempts)
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(maxAttempts-1)), ctx)
}

// maxInterval is base*2^(maxAttempts+1), saturating at MaxWait.
func maxInterval(base time.Duration, maxAttempts int) time.Duration {
	interval := base
	for i := 0; i <= maxAttempts; i++ {
		if interval >= MaxWait/2 {
			return MaxWait
		}
		interval *= 2
	}
	return interval
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "webhook returned status " + strconv.Itoa(e.code)
}

// stamp copies the payload so the caller's map is never mutated.
func stamp(payload map[string]interface{}, attempt int, at time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	out["attempt"] = attempt
	out["timestamp"] = at.UTC().Format(time.RFC3339)
	return out
}

// DispatchWithRetry POSTs payload to url as JSON. Every non-2xx status and
// every transport error is retried until maxAttempts is reached.
func (d *Dispatcher) DispatchWithRetry(ctx context.Context, payload map[string]interface{}, url string, maxAttempts int) (result Result) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	start := d.now()

	defer func() {
		if r := recover(); r != nil {
			result.Delivered = false
			result.LastError = fmt.Sprintf("panic during dispatch: %v", r)
		}
		result.Elapsed = d.now().Sub(start)
		metrics.NotificationDeliveries.WithLabelValues(strconv.FormatBool(result.Delivered)).Inc()
	}()

	headers := map[string]string{"Content-Type": "application/json"}
	if d.userAgent != "" {
		headers["User-Agent"] = d.userAgent
	}

	operation := func() error {
		result.Attempts++
		body, err := json.Marshal(stamp(payload, result.Attempts, d.now()))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()

		resp, err := d.http.Send(attemptCtx, http.MethodPost, url, headers, body)
		if err != nil {
			metrics.NotificationAttempts.WithLabelValues("network_error").Inc()
			return err
		}
		result.StatusCode = resp.StatusCode
		if !resp.IsSuccess() {
			metrics.NotificationAttempts.WithLabelValues("http_error").Inc()
			return &statusError{code: resp.StatusCode}
		}
		metrics.NotificationAttempts.WithLabelValues("success").Inc()
		return nil
	}

	notify := func(err error, wait time.Duration) {
		d.log.Warn("Webhook attempt failed, retrying", map[string]interface{}{
			"attempt": result.Attempts,
			"error":   err.Error(),
			"wait":    wait.String(),
		})
	}

	var timer backoff.Timer
	if d.newTimer != nil {
		timer = d.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, d.newBackOff(ctx, maxAttempts), notify, timer)
	if err == nil {
		result.Delivered = true
		result.LastError = ""
		return result
	}

	result.LastError = err.Error()
	d.log.Error("Webhook delivery failed", map[string]interface{}{
		"attempts": result.Attempts,
		"error":    result.LastError,
	})
	d.alert(ctx, payload, result)
	return result
}

// alert fans out to every sink; sink failures are logged and dropped.
func (d *Dispatcher) alert(ctx context.Context, payload map[string]interface{}, result Result) {
	if len(d.sinks) == 0 {
		return
	}

	subject := "Workflow notification could not be delivered"
	if s, ok := payload["emailSubject"].(string); ok && s != "" {
		subject = s
	}
	body, _ := payload["plainTextMessage"].(string)
	if body == "" {
		body, _ = payload["statusMessage"].(string)
	}
	body = fmt.Sprintf("%s\n\nWebhook delivery failed after %d attempts: %s", body, result.Attempts, result.LastError)

	for _, sink := range d.sinks {
		if err := sink.SendAlert(ctx, subject, body); err != nil {
			metrics.AlertsSent.WithLabelValues(sink.Name(), "failed").Inc()
			d.log.Warn("Alert sink failed", map[string]interface{}{"sink": sink.Name(), "error": err.Error()})
			continue
		}
		metrics.AlertsSent.WithLabelValues(sink.Name(), "sent").Inc()
	}
}
