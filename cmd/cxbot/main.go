package main

import (
	"log"

	"github.com/m3rciful/cxbot/core/cmd"
	"github.com/m3rciful/cxbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("cxbot: %v", err)
	}
}
