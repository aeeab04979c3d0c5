// Package main is the entry point of the activity CLI.
package main

import (
	"github.com/huangsam/activity/cmd"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	defer iocache.CloseCaching()

	err := cmd.Execute()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		contract.LogWarn("Failed to stop profiling", stopErr)
	}
	if err != nil {
		iocache.CloseCaching()
		contract.LogFatal("Command failed", err)
	}
}
