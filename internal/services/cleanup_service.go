package services

import (
	"context"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"authbase/internal/repositories"
)

// Повторы уборки: экспоненциальная пауза от 2с с потолком 5м, максимум 10 попыток.
const (
	defaultCleanupInterval = 24 * time.Hour
	cleanupRetryBase       = 2 * time.Second
	cleanupRetryCap        = 5 * time.Minute
	cleanupRetryMax        = 10
)

// CleanupService периодически удаляет протухшие сессии и отработавшие коды.
type CleanupService struct {
	sessions repositories.SessionRepository
	codes    repositories.VerificationCodeRepository
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCleanupService(sessions repositories.SessionRepository, codes repositories.VerificationCodeRepository, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &CleanupService{
		sessions: sessions,
		codes:    codes,
		interval: interval,
	}
}

// Start запускает фоновую уборку. Первый проход — сразу, дальше по тикеру.
func (s *CleanupService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	log.Printf("[cleanup] started interval=%s", s.interval)
}

// Stop останавливает уборку и ждёт завершения текущего прохода.
func (s *CleanupService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Printf("[cleanup] stopped")
}

func (s *CleanupService) runOnce(ctx context.Context) {
	b := retry.NewExponential(cleanupRetryBase)
	b = retry.WithCappedDuration(cleanupRetryCap, b)
	b = retry.WithMaxRetries(cleanupRetryMax, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.sweep(ctx); err != nil {
			log.Printf("[cleanup] sweep failed, will retry: err=%v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("[cleanup] sweep gave up: err=%v", err)
	}
}

func (s *CleanupService) sweep(ctx context.Context) error {
	sessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	codes, err := s.codes.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	log.Printf("[cleanup] swept expired_sessions=%d stale_codes=%d", sessions, codes)
	return nil
}
