// Package main 是独立训练进程的入口点。
package main

import (
	"context"
	"fmt"
	"os"

	"wordclass-go/internal/cli"
	"wordclass-go/pkg/log"
)

func main() {
	err := cli.NewRootCmd().ExecuteContext(context.Background())
	log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
