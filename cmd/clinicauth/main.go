// Command clinicauth corre el servidor OAuth2 de la clínica y sus tareas de
// operación (migraciones, alta de clients y usuarios, sesiones, llaves).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
