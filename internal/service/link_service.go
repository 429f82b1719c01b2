package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zhejian/shortlink/internal/codec"
	"github.com/zhejian/shortlink/internal/events"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/repository"
)

var (
	ErrInvalidURL   = errors.New("invalid URL format")
	ErrInvalidAlias = errors.New("invalid custom alias format")
	ErrAliasTaken   = errors.New("custom alias already exists")
	ErrNotFound     = errors.New("link not found")
)

// LinkServiceInterface defines the contract for link shortening operations
type LinkServiceInterface interface {
	Create(ctx context.Context, longURL, customAlias string) (string, error)
	Resolve(ctx context.Context, shortCode string) (string, error)
	Stats(ctx context.Context, shortCode string) (*model.Link, error)
}

// LinkService handles business logic for link operations
type LinkService struct {
	store     repository.Store
	checker   URLChecker
	aliases   *ValidatorChecker
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	created  metric.Int64Counter
	resolved metric.Int64Counter
}

// NewLinkService creates a new link service. publisher may be nil.
func NewLinkService(store repository.Store, checker URLChecker, publisher events.Publisher, logger *slog.Logger) *LinkService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	meter := otel.Meter("github.com/zhejian/shortlink/internal/service")
	created, _ := meter.Int64Counter("shortlink.links.created",
		metric.WithDescription("Short links created"))
	resolved, _ := meter.Int64Counter("shortlink.links.resolved",
		metric.WithDescription("Short code resolutions by outcome"))

	return &LinkService{
		store:     store,
		checker:   checker,
		aliases:   NewValidatorChecker(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		created:   created,
		resolved:  resolved,
	}
}

// Create stores longURL and returns its short code: customAlias when one is
// given, otherwise the base62 encoding of the new record's id.
func (s *LinkService) Create(ctx context.Context, longURL, customAlias string) (string, error) {
	if len(longURL) > MaxURLLength || !s.checker.Valid(longURL) {
		return "", ErrInvalidURL
	}

	link := &model.Link{LongURL: longURL}
	if customAlias != "" {
		if !s.aliases.ValidAlias(customAlias) {
			return "", ErrInvalidAlias
		}
		link.CustomAlias = customAlias
	}

	// The store's unique constraint decides alias races.
	if err := s.store.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrAliasConflict) {
			return "", ErrAliasTaken
		}
		return "", fmt.Errorf("create link: %w", err)
	}

	code := link.ShortCode()
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("custom_alias", link.CustomAlias != "")))
	s.publish(ctx, events.LinkCreated, link, code)

	return code, nil
}

// Resolve returns the redirect target for shortCode and counts the visit.
// The counter is committed before the target is returned.
func (s *LinkService) Resolve(ctx context.Context, shortCode string) (string, error) {
	link, err := s.lookup(ctx, shortCode)
	if err != nil {
		s.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		return "", err
	}

	if err := s.store.IncrementClicks(ctx, link.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("increment clicks: %w", err)
	}

	s.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "found")))
	s.publish(ctx, events.LinkClicked, link, shortCode)

	return link.LongURL, nil
}

// Stats returns the record behind shortCode without counting a visit.
func (s *LinkService) Stats(ctx context.Context, shortCode string) (*model.Link, error) {
	return s.lookup(ctx, shortCode)
}

// lookup tries the alias first and only then the numeric id, so an alias
// that happens to be a valid base62 numeral always wins.
func (s *LinkService) lookup(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.store.GetByAlias(ctx, shortCode)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup alias: %w", err)
	}

	id, err := codec.Decode(shortCode)
	if err != nil || id > math.MaxInt64 {
		return nil, ErrNotFound
	}

	link, err = s.store.GetByID(ctx, int64(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup id: %w", err)
	}
	return link, nil
}

// publish reports an event; delivery failures are logged and dropped.
func (s *LinkService) publish(ctx context.Context, t events.Type, link *model.Link, code string) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:      t,
		LinkID:    link.ID,
		ShortCode: code,
		LongURL:   link.LongURL,
		At:        s.now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish link event",
			slog.String("type", string(t)),
			slog.Int64("link_id", link.ID),
			slog.String("error", err.Error()))
	}
}

func outcome(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}

// Ensure LinkService implements LinkServiceInterface at compile time
var _ LinkServiceInterface = (*LinkService)(nil)
