package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
	"github.com/JaimeStill/tally/pkg/retry"
	"github.com/JaimeStill/tally/pkg/storage"
)

type repo struct {
	db          *sql.DB
	attachments Attachments
	retry       retry.Config
	logger      *slog.Logger
	pagination  pagination.Config
	now         func() time.Time
}

// New creates a Postgres-backed mailbox.
func New(
	db *sql.DB,
	attachments Attachments,
	retryCfg retry.Config,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:          db,
		attachments: attachments,
		retry:       retryCfg,
		logger:      logger.With("system", "mailbox"),
		pagination:  pagination,
		now:         time.Now,
	}
}

func (r *repo) Handler(maxUpload int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUpload)
}

func (r *repo) Send(ctx context.Context, msg Outbound) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	thread := msg.ThreadID
	if thread == "" {
		thread = uuid.NewString()
	}
	id := uuid.New()

	q := `
		INSERT INTO outbound_messages(id, thread_id, recipients, cc, subject, body, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	args := []any{
		id, thread,
		encode(msg.To), encode(msg.Cc),
		msg.Subject, msg.Body,
		encode(msg.Attachments),
	}

	err := retry.Do(ctx, r.retry, r.logger, func() error {
		err := repository.ExecExpectOne(ctx, r.db, q, args...)
		if err != nil && repository.IsUniqueViolation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	r.logger.Info("message queued",
		"id", id,
		"thread", thread,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return thread, nil
}

func (r *repo) Outbox(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[OutboundMessage], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(outboundProjection, outboundSort).
		WhereSearch(page.Search, "Subject", "Body")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanOutbound)
	if err != nil {
		return nil, fmt.Errorf("list outbound messages: %w", err)
	}
	return result, nil
}

func (r *repo) FindOutbound(ctx context.Context, id string) (*OutboundMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	q, args := query.NewBuilder(outboundProjection).BuildSingle("ID", uid)
	m, err := repository.QueryOne(ctx, r.db, q, args, scanOutbound)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) MarkSent(ctx context.Context, id string) (*OutboundMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	q := `
		UPDATE outbound_messages
		SET status = 'sent', sent_at = COALESCE(sent_at, NOW())
		WHERE id = $1
		RETURNING id, thread_id, recipients, cc, subject, body, attachments, status, created_at, sent_at`

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (OutboundMessage, error) {
		return repository.QueryOne(ctx, tx, q, []any{uid}, scanOutbound)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("message sent", "id", m.ID, "thread", m.ThreadID)
	return &m, nil
}

func (r *repo) Attachment(ctx context.Context, id string, index int) (*events.Attachment, []byte, error) {
	m, err := r.FindOutbound(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(m.Attachments) {
		return nil, nil, fmt.Errorf("%w: attachment %d", ErrNotFound, index)
	}

	att := m.Attachments[index]
	data, err := r.attachments.Read(ctx, att.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("read attachment %s: %w", att.Key, err)
	}
	return &att, data, nil
}

func (r *repo) Receive(ctx context.Context, msg events.Message, files []File) (*InboundMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = r.now().UTC()
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name := filepath.Base(f.Name[strings.LastIndexByte(f.Name, '\\')+1:])
		if name == "." || name == "/" || seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFile, f.Name)
		}
		if err := storage.ValidateKey(AttachmentKey(msg.ID, name)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		seen[name] = true

		ct := f.ContentType
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(name))
		}

		key := AttachmentKey(msg.ID, name)
		if err := r.attachments.Store(ctx, key, f.Data, ct); err != nil {
			return nil, fmt.Errorf("store attachment %s: %w", name, err)
		}

		msg.Attachments = append(msg.Attachments, events.Attachment{
			Name:        name,
			ContentType: ct,
			Key:         key,
			Size:        int64(len(f.Data)),
		})
	}

	q := `
		INSERT INTO inbound_messages(id, thread_id, sender, subject, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	err := repository.ExecExpectOne(ctx, r.db, q,
		msg.ID, msg.ThreadID, msg.From, msg.Subject, encode(msg), msg.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, msg.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert inbound message: %w", err)
	}

	r.logger.Info("message received",
		"id", msg.ID,
		"thread", msg.ThreadID,
		"from", msg.From,
		"attachments", len(msg.Attachments),
	)
	return &InboundMessage{Message: msg, Status: StatusReceived}, nil
}

func (r *repo) Inbox(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[InboundMessage], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(inboundProjection, inboundSort).
		WhereSearch(page.Search, "Subject", "From")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanInbound)
	if err != nil {
		return nil, fmt.Errorf("list inbound messages: %w", err)
	}
	return result, nil
}

func (r *repo) Pending(ctx context.Context, limit int) ([]events.Message, error) {
	status := StatusReceived
	qb := query.
		NewBuilder(inboundProjection, inboundSort).
		WhereEquals("Status", &status)

	q, args := qb.BuildPage(1, limit)
	items, err := repository.QueryMany(ctx, r.db, q, args, scanInbound)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}

	msgs := make([]events.Message, len(items))
	for i, m := range items {
		msgs[i] = m.Message
	}
	return msgs, nil
}

func (r *repo) MarkDelivered(ctx context.Context, id string) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE inbound_messages
		SET status = 'delivered', delivered_at = NOW()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}
