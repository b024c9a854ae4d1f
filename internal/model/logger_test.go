package model

import (
	"testing"

	"github.com/apex/log"
)

// the logger in apex/log must implement our Logger interface
var _ Logger = log.Log

func TestDiscardLoggerWorksAsIntended(t *testing.T) {
	logger := DiscardLogger
	logger.Debug("foo")
	logger.Debugf("%s", "foo")
	logger.Info("foo")
	logger.Infof("%s", "foo")
	logger.Warn("foo")
	logger.Warnf("%s", "foo")
}
