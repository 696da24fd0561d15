//go:build lambda

package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/deskwarrior/simulator/internal/logger"
)

func main() {
	logConfig, _ := logger.LoadConfig("")
	logger.Initialize(logConfig)

	h, err := newHandler()
	if err != nil {
		logger.Error("Invalid environment", "error", err)
		os.Exit(1)
	}
	lambda.Start(h.handle)
}
