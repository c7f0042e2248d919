package service

import (
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
)

// VersionGate validates that an incoming release is strictly newer than the
// latest recorded one. It must run before any other mutation of an import,
// inside the same transaction, so a stale import rolls back fully.
type VersionGate struct {
	log *logrus.Logger
}

// NewVersionGate creates a new version gate
func NewVersionGate(logger *logrus.Logger) *VersionGate {
	return &VersionGate{log: logger}
}

// Validate passes silently when no version is recorded yet or force is set,
// and fails with a StaleVersionError when newVersion is not strictly newer
// under dotted-numeric ordering.
func (g *VersionGate) Validate(newVersion, latestKnown string, force bool) error {
	if latestKnown == "" {
		return nil
	}
	if force {
		g.log.WithFields(logrus.Fields{
			"version": newVersion,
			"latest":  latestKnown,
		}).Warn("Version gate bypassed by force flag")
		return nil
	}
	if domain.CompareVersions(newVersion, latestKnown) <= 0 {
		return &domain.StaleVersionError{Version: newVersion, Latest: latestKnown}
	}
	return nil
}
