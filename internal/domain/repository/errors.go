package repository

import "errors"

// Errores que retornan todos los backends. El Guard no reintenta ninguno de
// ellos y la capa oauth los traduce a códigos del protocolo.
var (
	// ErrNotFound: el registro no existe, o un code no cumple las condiciones
	// de Consume. Los dos casos no se distinguen.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict: client_id, username o hash duplicado.
	ErrConflict = errors.New("repository: conflict")

	// ErrInvalidInput: datos rechazados antes de tocar el backend.
	ErrInvalidInput = errors.New("repository: invalid input")
)
