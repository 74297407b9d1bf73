package ports

import (
	"context"
	"time"

	"TechDigest/internal/domain"
)

// ItemSource pulls raw news items from one upstream provider.
type ItemSource interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawItem, error)
}

// Synthesizer turns prepared candidates into one structured edition document.
type Synthesizer interface {
	ComposeEdition(ctx context.Context, candidates []domain.CandidateItem) (domain.EditionContent, error)
}

// EditionRepository persists editions and their lifecycle transitions.
type EditionRepository interface {
	Insert(ctx context.Context, edition domain.Edition) (domain.Edition, error)
	GetByID(ctx context.Context, id string) (domain.Edition, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// SubscriberRepository manages mailing-list membership.
type SubscriberRepository interface {
	Active(ctx context.Context) ([]domain.Subscriber, error)
	Subscribe(ctx context.Context, email string) (domain.Subscriber, error)
	UnsubscribeByToken(ctx context.Context, token string) error
}

// Mail is one outbound message to a single recipient.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Scheduler drives recurring pipeline runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
