// testrunner runs the end-to-end dashboard scenarios against a running
// dashboard and exits non-zero if any fail.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/deskwarrior/simulator/test"
)

func main() {
	url := flag.String("url", "http://localhost:8080", "Dashboard base URL")
	password := flag.String("password", os.Getenv("SIM_TEST_PASSWORD"), "Dashboard API password, if one is configured")
	run := flag.String("run", "", "Only run scenarios whose name matches this regexp")
	wait := flag.Duration("wait", 0, "Wait up to this long for the dashboard to become healthy")
	verbose := flag.Bool("v", false, "Show each scenario's actions")
	flag.Parse()

	test.Verbose = *verbose
	target := test.Target{URL: *url, Password: *password}

	var match func(string) bool
	if *run != "" {
		re, err := regexp.Compile(*run)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: bad -run pattern: %v\n", err)
			os.Exit(2)
		}
		match = re.MatchString
	}

	if *wait > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), *wait)
		err := test.WaitReady(ctx, target)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Running scenarios against %s\n\n", *url)
	start := time.Now()
	results := test.RunMatching(target, match)
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no scenarios matched")
		os.Exit(2)
	}
	failed := test.PrintResults(results)
	fmt.Printf("Finished in %s\n", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		os.Exit(1)
	}
}
