package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zsjsll/gemini-proxy/cmd"
	"github.com/zsjsll/gemini-proxy/health"
)

func main() {
	config, err := cmd.GetConfigFromEnvironment()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	client := health.NewClient(config.ProxyProtocol)
	client.Timeout = config.CheckTimeout

	checker := health.HTTPChecker{
		Address: ":" + config.Port,
		TLS:     config.TLSEnabled(),
		Client:  client,
	}

	status := checker.Check(context.Background())
	fmt.Println(status.Message)
	if !status.IsHealthy {
		os.Exit(1)
	}
}
