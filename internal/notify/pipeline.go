// Package notify is the post-commit notification pipeline. Event-creation
// handlers publish an occurrence after the database write is acknowledged; a
// single worker consumes occurrences off the request path, builds one
// notification job per occurrence and hands it to the mail transport.
//
// Delivery is best-effort and non-durable: a transport error is logged and
// swallowed, a full buffer drops the occurrence, and nothing survives a
// process restart. Upgrading this guarantee would change observable behavior
// under failure injection, so it is deliberate.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/gatherly/server/internal/metrics"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// EventCreated is the occurrence published after a successful event-creation
// write.
type EventCreated struct {
	CreatorEmail    string
	CreatorUsername string
	EventName       string
	EventStartsAt   time.Time
	EventLocation   string
}

// Job is one unit of outbound-mail work derived from an occurrence. It is
// ephemeral and never persisted.
type Job struct {
	Recipient string
	Subject   string
	Body      string
}

// Mailer is the outbound transport consumed by the pipeline.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Pipeline decouples mail dispatch from the HTTP response cycle.
type Pipeline struct {
	ch        chan EventCreated
	mailer    Mailer
	templates *template.Template
	logger    zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPipeline creates a pipeline with the given buffer size. Start must be
// called before occurrences are consumed.
func NewPipeline(mailer Mailer, buffer int, logger zerolog.Logger) (*Pipeline, error) {
	if buffer <= 0 {
		buffer = 64
	}
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Pipeline{
		ch:        make(chan EventCreated, buffer),
		mailer:    mailer,
		templates: templates,
		logger:    logger.With().Str("component", "notify").Logger(),
	}, nil
}

// Start launches the single consumer. ctx bounds each individual send, not
// the worker lifetime; use Stop to shut down.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for occ := range p.ch {
			p.dispatch(ctx, occ)
		}
	}()
}

// Publish enqueues an occurrence without blocking the caller. Call it only
// after the database write has been acknowledged. When the buffer is full the
// occurrence is dropped with a warning; delivery is best-effort.
func (p *Pipeline) Publish(occ EventCreated) {
	select {
	case p.ch <- occ:
	default:
		metrics.NotificationsDispatched.WithLabelValues("dropped").Inc()
		p.logger.Warn().
			Str("event", occ.EventName).
			Str("recipient", occ.CreatorEmail).
			Msg("notification buffer full, dropping occurrence")
	}
}

// Stop closes the intake and waits for in-flight dispatches to finish.
// Buffered occurrences are drained; unsent ones are lost on process exit
// either way.
func (p *Pipeline) Stop() {
	p.closeOnce.Do(func() { close(p.ch) })
	p.wg.Wait()
}

func (p *Pipeline) dispatch(ctx context.Context, occ EventCreated) {
	job, err := p.buildJob(occ)
	if err != nil {
		p.logger.Error().Err(err).Str("event", occ.EventName).Msg("failed to build notification job")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := p.mailer.Send(sendCtx, job.Recipient, job.Subject, job.Body); err != nil {
		// Swallowed: transport failures never reach the original caller and
		// are not retried or persisted for replay.
		metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
		p.logger.Error().
			Err(err).
			Str("recipient", job.Recipient).
			Str("event", occ.EventName).
			Msg("event confirmation email failed")
		return
	}

	metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
	p.logger.Info().
		Str("recipient", job.Recipient).
		Str("event", occ.EventName).
		Msg("event confirmation email dispatched")
}

type confirmationData struct {
	Username      string
	EventName     string
	EventStartsAt string
	EventLocation string
	CurrentYear   int
}

func (p *Pipeline) buildJob(occ EventCreated) (Job, error) {
	var buf bytes.Buffer
	data := confirmationData{
		Username:      occ.CreatorUsername,
		EventName:     occ.EventName,
		EventStartsAt: occ.EventStartsAt.Format("Monday, January 2, 2006 at 15:04 MST"),
		EventLocation: occ.EventLocation,
		CurrentYear:   time.Now().Year(),
	}
	if err := p.templates.ExecuteTemplate(&buf, "event_confirmation.html", data); err != nil {
		return Job{}, fmt.Errorf("execute template event_confirmation.html: %w", err)
	}

	return Job{
		Recipient: occ.CreatorEmail,
		Subject:   fmt.Sprintf("Your event %q is confirmed", occ.EventName),
		Body:      buf.String(),
	}, nil
}
