// Package audit emite el rastro de auditoría de autorizaciones: quién autorizó
// a qué client y cuándo se canjearon o denegaron credenciales. Sale por el
// logger del contexto (conserva request_id) con nombre "audit", así se puede
// rutear aparte del log operativo.
package audit

import (
	"context"

	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

const (
	EventCodeIssued       = "code_issued"
	EventTokensIssued     = "tokens_issued"
	EventExchangeDenied   = "exchange_denied"
	EventClientRegistered = "client_registered"
)

// Log escribe un evento de auditoría. Nunca recibe secretos en claro; para
// codes y tokens usar logger.Fingerprint.
func Log(ctx context.Context, event string, fields ...logger.Field) {
	logger.From(ctx).Named("audit").Info(event, append(fields, logger.String("event", event))...)
}
