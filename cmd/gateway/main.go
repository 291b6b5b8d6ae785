// Command gateway é um reverse proxy com controle de admissão (cooldown,
// throttling e cota por rota) na frente do backend de chat/inferência.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
