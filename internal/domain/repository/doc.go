// Package repository define el modelo de dominio y los contratos de
// persistencia del servidor OAuth2.
//
// Las interfaces son independientes del almacenamiento; las implementaciones
// viven en internal/store/adapters/ (memory, pg, sqldb) y el code store
// alternativo en internal/store/adapters/redis.
//
//	┌──────────────────────────────────────────────┐
//	│        oauth (GrantEngine y componentes)     │
//	└──────────────────────────────────────────────┘
//	                      │
//	                      ▼
//	┌──────────────────────────────────────────────┐
//	│       domain/repository (interfaces)         │
//	│  Clients, Users, Codes, Tokens               │
//	└──────────────────────────────────────────────┘
//	                      │
//	        ┌─────────────┼─────────────┐
//	        ▼             ▼             ▼
//	    memory        pg / sqldb      redis
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Codes y tokens se guardan hasheados (sha256 base64url), nunca en claro
//   - Errores de dominio están en errors.go
package repository
