package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/fleetrelay/cmd/fleetrelay/app"
)

func main() {
	app.NewApp().Run()
}
