// Package main is the entry point for the investment advisor service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/sentinel-advisor/cmd/advisor/app"
)

func main() {
	app.NewApp().Run()
}
