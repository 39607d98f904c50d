package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.RWMutex
	instance *zap.Logger
)

// Init reemplaza el logger global. Se llama una vez desde el comando serve;
// los tests pueden llamarlo con Replace para capturar la salida.
func Init(cfg Config) {
	Replace(build(cfg))
}

// Replace instala un logger ya construido (útil con zaptest/observer).
func Replace(l *zap.Logger) {
	mu.Lock()
	instance = l
	mu.Unlock()
}

// L retorna el logger global. Sin Init previo devuelve un logger no-op,
// así los tests de paquetes no ensucian la salida.
func L() *zap.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Named retorna el logger global con un nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushea buffers pendientes.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
