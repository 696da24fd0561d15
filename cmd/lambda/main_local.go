//go:build !lambda

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"github.com/deskwarrior/simulator/internal/logger"
)

func main() {
	logConfig, _ := logger.LoadConfig("")
	logger.Initialize(logConfig)

	h, err := newHandler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read request: %v\n", err)
		os.Exit(1)
	}
	resp, _ := h.handle(context.Background(), events.LambdaFunctionURLRequest{Body: string(body)})
	fmt.Println(resp.Body)
	if resp.StatusCode != 200 {
		os.Exit(1)
	}
}
