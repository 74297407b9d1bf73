package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
)

const (
	editionsTable    = "editions"
	subscribersTable = "subscribers"

	// Attempts for the numbering insert when concurrent runs collide on
	// the unique edition_number constraint.
	insertAttempts = 3

	uniqueViolation = "23505"
)

var (
	// ErrEditionNotFound reports a lookup for an id that does not exist.
	ErrEditionNotFound = errors.New("edition not found")
	// ErrAlreadySubscribed reports a duplicate email on subscribe.
	ErrAlreadySubscribed = errors.New("email already subscribed")
	// ErrUnknownToken reports an unsubscribe token with no matching subscriber.
	ErrUnknownToken = errors.New("unknown unsubscribe token")
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// EditionRepository persists editions into Postgres.
type EditionRepository struct {
	db *sql.DB
}

var _ ports.EditionRepository = (*EditionRepository)(nil)

// NewEditionRepository wires a sql.DB implementation.
func NewEditionRepository(db *sql.DB) *EditionRepository {
	return &EditionRepository{db: db}
}

// Insert writes a new draft edition. The edition number is assigned inside
// the statement itself (max+1 subselect under a unique constraint), so two
// overlapping runs cannot both observe the same maximum; the loser of the
// race gets a unique violation and retries.
func (r *EditionRepository) Insert(ctx context.Context, edition domain.Edition) (domain.Edition, error) {
	contentJSON, err := json.Marshal(edition.Content)
	if err != nil {
		return domain.Edition{}, fmt.Errorf("marshal content: %w", err)
	}

	edition.ID = uuid.NewString()
	edition.Status = domain.StatusDraft

	query, args, err := psql.Insert(editionsTable).
		Columns("id", "edition_number", "title", "summary_intro", "content_json", "html_content", "status").
		Values(
			edition.ID,
			sq.Expr(fmt.Sprintf("(SELECT COALESCE(MAX(edition_number), 0) + 1 FROM %s)", editionsTable)),
			edition.Title,
			edition.Intro,
			contentJSON,
			edition.HTML,
			edition.Status,
		).
		Suffix("RETURNING edition_number, created_at").
		ToSql()
	if err != nil {
		return domain.Edition{}, fmt.Errorf("build insert: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&edition.EditionNumber, &edition.CreatedAt)
		if err == nil {
			return edition, nil
		}
		if !isUniqueViolation(err) || attempt >= insertAttempts {
			return domain.Edition{}, fmt.Errorf("insert edition: %w", err)
		}
	}
}

// GetByID loads one edition with its structured content.
func (r *EditionRepository) GetByID(ctx context.Context, id string) (domain.Edition, error) {
	query, args, err := psql.
		Select("id", "edition_number", "title", "summary_intro", "content_json", "html_content", "status", "created_at", "published_at").
		From(editionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Edition{}, fmt.Errorf("build select: %w", err)
	}

	var (
		edition     domain.Edition
		contentJSON []byte
		publishedAt sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&edition.ID,
		&edition.EditionNumber,
		&edition.Title,
		&edition.Intro,
		&contentJSON,
		&edition.HTML,
		&edition.Status,
		&edition.CreatedAt,
		&publishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Edition{}, ErrEditionNotFound
	}
	if err != nil {
		return domain.Edition{}, fmt.Errorf("select edition: %w", err)
	}

	if err := json.Unmarshal(contentJSON, &edition.Content); err != nil {
		return domain.Edition{}, fmt.Errorf("unmarshal content: %w", err)
	}
	if publishedAt.Valid {
		edition.PublishedAt = &publishedAt.Time
	}

	return edition, nil
}

// MarkPublished flips the edition to published and records the timestamp.
func (r *EditionRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	query, args, err := psql.Update(editionsTable).
		Set("status", domain.StatusPublished).
		Set("published_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrEditionNotFound
	}

	return nil
}

// Delete removes one edition and closes the numbering gap by decrementing
// every higher edition_number, keeping the sequence dense. The unique
// constraint is deferred inside the transaction so the shift can proceed
// in arbitrary row order.
func (r *EditionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var number int
	selectQuery, selectArgs, err := psql.Select("edition_number").
		From(editionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	err = tx.QueryRowContext(ctx, selectQuery, selectArgs...).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEditionNotFound
	}
	if err != nil {
		return fmt.Errorf("select edition number: %w", err)
	}

	deleteQuery, deleteArgs, err := psql.Delete(editionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("delete edition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "SET CONSTRAINTS editions_edition_number_key DEFERRED"); err != nil {
		return fmt.Errorf("defer numbering constraint: %w", err)
	}

	renumberQuery, renumberArgs, err := psql.Update(editionsTable).
		Set("edition_number", sq.Expr("edition_number - 1")).
		Where(sq.Gt{"edition_number": number}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build renumber: %w", err)
	}
	if _, err := tx.ExecContext(ctx, renumberQuery, renumberArgs...); err != nil {
		return fmt.Errorf("renumber editions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// SubscriberRepository manages mailing-list rows in Postgres.
type SubscriberRepository struct {
	db *sql.DB
}

var _ ports.SubscriberRepository = (*SubscriberRepository)(nil)

// NewSubscriberRepository wires a sql.DB implementation.
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Active returns all subscribers eligible to receive an edition, with
// their unsubscribe tokens.
func (r *SubscriberRepository) Active(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := psql.Select("id", "email", "status", "unsubscribe_token").
		From(subscribersTable).
		Where(sq.Eq{"status": domain.SubscriberActive}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Status, &s.UnsubscribeToken); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return subscribers, nil
}

// Subscribe inserts a new active subscriber with a fresh unsubscribe token.
func (r *SubscriberRepository) Subscribe(ctx context.Context, email string) (domain.Subscriber, error) {
	subscriber := domain.Subscriber{
		ID:               uuid.NewString(),
		Email:            email,
		Status:           domain.SubscriberActive,
		UnsubscribeToken: uuid.NewString(),
	}

	query, args, err := psql.Insert(subscribersTable).
		Columns("id", "email", "status", "unsubscribe_token").
		Values(subscriber.ID, subscriber.Email, subscriber.Status, subscriber.UnsubscribeToken).
		ToSql()
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Subscriber{}, ErrAlreadySubscribed
		}
		return domain.Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}

	return subscriber, nil
}

// UnsubscribeByToken flips one subscriber to unsubscribed.
func (r *SubscriberRepository) UnsubscribeByToken(ctx context.Context, token string) error {
	query, args, err := psql.Update(subscribersTable).
		Set("status", domain.SubscriberUnsubscribed).
		Where(sq.Eq{"unsubscribe_token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrUnknownToken
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
