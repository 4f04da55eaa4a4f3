package zap

import "github.com/bountybase/engine/engine"

func envLogLevel() string {
	return engine.GetenvOrDefault("LOG_LEVEL", "info")
}
