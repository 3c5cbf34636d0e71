package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/email"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var errNoRecipient = errors.New("no recipient address")

// Dispatcher turns domain notifications into emails. Bodies are Markdown; each message
// carries the Markdown as its text part and the rendered HTML as its HTML part.
type Dispatcher struct {
	sender  email.Sender
	md      goldmark.Markdown
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(sender email.Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		md:      goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough)),
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Deliver sends n. Any failure, including a panic in the transport, is returned as a
// *domain.DeliveryError.
func (d *Dispatcher) Deliver(ctx context.Context, n domain.Notification) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "mail transport panicked", "kind", n.Kind, "panic", r)
			err = &domain.DeliveryError{Kind: n.Kind, To: n.To, Err: fmt.Errorf("panic: %v", r)}
		}

		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		metrics.DeliveriesTotal.WithLabelValues(string(n.Kind), outcome).Inc()
		metrics.DeliveryDuration.WithLabelValues(string(n.Kind)).Observe(time.Since(start).Seconds())
	}()

	if n.To == "" {
		return &domain.DeliveryError{Kind: n.Kind, To: n.To, Err: errNoRecipient}
	}

	html, err := d.render(n.Body)
	if err != nil {
		return &domain.DeliveryError{Kind: n.Kind, To: n.To, Err: err}
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msg := email.Message{To: n.To, Subject: n.Subject, Text: n.Body, HTML: html}
	if err := d.sender.Send(sendCtx, msg); err != nil {
		return &domain.DeliveryError{Kind: n.Kind, To: n.To, Err: err}
	}

	d.logger.DebugContext(ctx, "notification delivered", "kind", n.Kind, "to", n.To)
	return nil
}

func (d *Dispatcher) render(body string) (string, error) {
	var buf bytes.Buffer
	if err := d.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
