package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

// Sweeper borra periódicamente codes y tokens vencidos. Es housekeeping: la
// validez nunca depende de que haya corrido.
type Sweeper struct {
	codes    *CodeIssuer
	tokens   *TokenStore
	interval time.Duration
	metrics  *Metrics
}

func NewSweeper(codes *CodeIssuer, tokens *TokenStore, interval time.Duration, m *Metrics) *Sweeper {
	return &Sweeper{codes: codes, tokens: tokens, interval: interval, metrics: m}
}

// RunOnce hace una pasada y retorna cuántos registros borró de cada tipo.
func (s *Sweeper) RunOnce(ctx context.Context) (codes, tokens int64, err error) {
	codes, cerr := s.codes.Sweep(ctx)
	tokens, terr := s.tokens.Sweep(ctx)
	s.metrics.sweptRecords("code", codes)
	s.metrics.sweptRecords("token", tokens)
	return codes, tokens, errors.Join(cerr, terr)
}

// Run corre hasta que ctx se cancele. interval <= 0 lo deshabilita.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	log := logger.From(ctx).With(logger.Component("sweeper"))
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c, tk, err := s.RunOnce(ctx)
			if err != nil {
				log.Warn("sweep failed", logger.Err(err))
				continue
			}
			if c > 0 || tk > 0 {
				log.Debug("sweep done", logger.Int64("codes", c), logger.Int64("tokens", tk))
			}
		}
	}
}
