package main

import "github.com/AtRiskMedia/tractcall-go/internal/application/startup"

func runServe() error {
	return startup.Initialize()
}
