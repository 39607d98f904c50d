package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ErrKeyExists: SetEnvValue sin overwrite y la variable ya está en el archivo.
var ErrKeyExists = errors.New("env key already set")

// SetEnvValue agrega o reemplaza key=value en un archivo .env, conservando
// el resto de las variables. La escritura es atómica (tmp + fsync + rename)
// y el archivo queda con permisos 0600.
func SetEnvValue(path, key, value string, overwrite bool) error {
	vars, err := godotenv.Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		vars = map[string]string{}
	case err != nil:
		return fmt.Errorf("read %s: %w", path, err)
	}
	if _, ok := vars[key]; ok && !overwrite {
		return fmt.Errorf("%w: %s in %s", ErrKeyExists, key, path)
	}
	vars[key] = value

	body, err := godotenv.Marshal(vars)
	if err != nil {
		return fmt.Errorf("marshal env: %w", err)
	}
	return writeFileAtomic(path, []byte(body+"\n"), 0o600)
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
