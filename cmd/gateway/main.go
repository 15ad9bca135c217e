package main

import (
	"log"

	"github.com/mattelianyc/microdawgs/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("gateway failed to start: %v", err)
	}
}
