package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
	"TechDigest/internal/render"
)

// PublishOutcome distinguishes "nothing to do" results from a completed
// publish, so callers can render an appropriate message without treating
// every non-success as a crash.
type PublishOutcome string

const (
	OutcomePublished        PublishOutcome = "published"
	OutcomeAlreadyPublished PublishOutcome = "already_published"
	OutcomeNoRecipients     PublishOutcome = "no_recipients"
	OutcomeAllSendsFailed   PublishOutcome = "all_sends_failed"
)

// PublishSummary reports the result of one publish attempt.
type PublishSummary struct {
	Outcome      PublishOutcome `json:"outcome"`
	Sent         int            `json:"sent"`
	Failed       int            `json:"failed"`
	Transitioned bool           `json:"transitioned"`
}

// PublisherDeps wires all driven adapters into the publish workflow.
type PublisherDeps struct {
	Editions        ports.EditionRepository
	Subscribers     ports.SubscriberRepository
	Mailer          ports.Mailer
	UnsubscribeBase string
	Logger          *slog.Logger
}

// Publisher fans one edition out to every active subscriber.
type Publisher struct {
	editions        ports.EditionRepository
	subscribers     ports.SubscriberRepository
	mailer          ports.Mailer
	unsubscribeBase string
	logger          *slog.Logger
	now             func() time.Time
}

// NewPublisher constructs the publish component.
func NewPublisher(deps PublisherDeps) *Publisher {
	return &Publisher{
		editions:        deps.Editions,
		subscribers:     deps.Subscribers,
		mailer:          deps.Mailer,
		unsubscribeBase: deps.UnsubscribeBase,
		logger:          deps.Logger,
		now:             time.Now,
	}
}

// Publish delivers the edition to all active subscribers and transitions
// its status. Sends are concurrent and individually isolated: every send
// settles before results are inspected, and one failure never aborts the
// batch. The edition becomes published when at least one send succeeded.
func (p *Publisher) Publish(ctx context.Context, editionID string) (PublishSummary, error) {
	edition, err := p.editions.GetByID(ctx, editionID)
	if err != nil {
		return PublishSummary{}, fmt.Errorf("load edition: %w", err)
	}

	if edition.Status == domain.StatusPublished {
		return PublishSummary{Outcome: OutcomeAlreadyPublished}, nil
	}

	recipients, err := p.subscribers.Active(ctx)
	if err != nil {
		return PublishSummary{}, fmt.Errorf("load subscribers: %w", err)
	}
	if len(recipients) == 0 {
		return PublishSummary{Outcome: OutcomeNoRecipients}, nil
	}

	p.info("sending edition", "edition_number", edition.EditionNumber, "recipients", len(recipients))

	sendErrs := make([]error, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient domain.Subscriber) {
			defer wg.Done()
			sendErrs[i] = p.mailer.Send(ctx, ports.Mail{
				To:      recipient.Email,
				Subject: edition.Title,
				HTML:    render.Personalize(edition.HTML, p.unsubscribeURL(recipient.UnsubscribeToken)),
			})
		}(i, recipient)
	}
	wg.Wait()

	summary := PublishSummary{}
	for i, sendErr := range sendErrs {
		if sendErr != nil {
			summary.Failed++
			p.warn("send failed", "recipient", recipients[i].Email, "error", sendErr)
			continue
		}
		summary.Sent++
	}

	if summary.Sent == 0 {
		summary.Outcome = OutcomeAllSendsFailed
		return summary, fmt.Errorf("all %d sends failed", summary.Failed)
	}

	if err := p.editions.MarkPublished(ctx, editionID, p.now()); err != nil {
		// Messages are already out; surface the inconsistent state.
		return summary, fmt.Errorf("mark published after %d sends: %w", summary.Sent, err)
	}

	summary.Outcome = OutcomePublished
	summary.Transitioned = true
	p.info("edition published", "edition_number", edition.EditionNumber, "sent", summary.Sent, "failed", summary.Failed)
	return summary, nil
}

func (p *Publisher) unsubscribeURL(token string) string {
	return fmt.Sprintf("%s?token=%s", p.unsubscribeBase, url.QueryEscape(token))
}

func (p *Publisher) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
