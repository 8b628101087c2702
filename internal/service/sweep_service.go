package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"filevault/internal/auth"
	"filevault/internal/cache"
	"filevault/internal/mail"
	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/repository"
	"filevault/internal/storage"
)

const (
	passRemoval = "removal"
	passWarning = "warning"
)

// SweepService removes and warns inactive users.
type SweepService interface {
	RemoveInactive(ctx context.Context) (int, error)
	NotifyInactive(ctx context.Context) (int, error)
}

// SweepConfig holds the inactivity thresholds.
type SweepConfig struct {
	RemoveAfter time.Duration
	WarnAfter   time.Duration
}

type sweepService struct {
	users   repository.UserRepository
	objects storage.ObjectStore
	tokens  auth.TokenManager
	cache   *cache.Client
	mailer  mail.Mailer
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	cfg     SweepConfig
	now     func() time.Time
}

// NewSweepService creates a sweep service.
func NewSweepService(
	users repository.UserRepository,
	objects storage.ObjectStore,
	tokens auth.TokenManager,
	cacheClient *cache.Client,
	mailer mail.Mailer,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	cfg SweepConfig,
) SweepService {
	return &sweepService{
		users:   users,
		objects: objects,
		tokens:  tokens,
		cache:   cacheClient,
		mailer:  mailer,
		metrics: m,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RemoveInactive deletes every user inactive for longer than RemoveAfter together with
// their objects and tokens. A user whose cleanup fails is kept for the next run.
func (s *sweepService) RemoveInactive(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.RemoveAfter)
	users, err := s.users.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list inactive users: %w", err)
	}

	removed := 0
	for i := range users {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		user := &users[i]
		if err := s.removeUser(ctx, user); err != nil {
			s.metrics.SweepFailed(passRemoval)
			s.log.WithError(err).WithField("user_id", user.ID).Error("remove inactive user")
			continue
		}
		removed++
		s.metrics.SweepRemoved()
	}

	s.log.WithFields(logrus.Fields{"candidates": len(users), "removed": removed}).Info("inactive user removal done")
	return removed, nil
}

func (s *sweepService) removeUser(ctx context.Context, user *model.User) error {
	n, err := storage.DeletePrefix(ctx, s.objects, user.OwnerPrefix())
	if err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	if err := s.tokens.DeleteUserTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	_ = s.cache.Delete(ctx, ListCacheKey(user.ID))
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"files":       n,
		"last_active": user.LastActivity(),
	}).Info("inactive user removed")
	return nil
}

// NotifyInactive mails a retention warning to every user inactive for longer than WarnAfter.
func (s *sweepService) NotifyInactive(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.WarnAfter)
	users, err := s.users.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list inactive users: %w", err)
	}

	subject, body := mail.RetentionWarningMessage()
	warned := 0
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return warned, err
		}
		if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
			s.metrics.SweepFailed(passWarning)
			s.log.WithError(err).WithField("user_id", user.ID).Warn("retention warning not sent")
			continue
		}
		warned++
		s.metrics.SweepWarned()
	}

	s.log.WithFields(logrus.Fields{"candidates": len(users), "warned": warned}).Info("inactive user warning done")
	return warned, nil
}
