// Package main is the entry point for the offline knowledge base pipeline
// and its interactive chat.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/sentinel-advisor/cmd/advisor-pipeline/app"
)

func main() {
	app.NewApp().Run()
}
