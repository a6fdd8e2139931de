package app

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/odyssey-erp/authority/internal/auth"
	"github.com/odyssey-erp/authority/internal/authz"
	"github.com/odyssey-erp/authority/internal/policy"
	"github.com/odyssey-erp/authority/internal/shared"
)

// NewRegistry builds the process-wide privilege registry from the built-in privileges and
// the configured policy file. A missing policy file is tolerated; an invalid one is not.
// Policy entries overwrite built-in role rules of the same name.
func NewRegistry(cfg *Config, logger *slog.Logger) (*auth.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := authz.NewRegistry[*auth.User]()
	registerBuiltins(registry)

	if cfg == nil || cfg.PolicyFile == "" {
		return registry, nil
	}
	doc, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("policy file not found, using built-in privileges", slog.String("path", cfg.PolicyFile))
			return registry, nil
		}
		return nil, err
	}
	if err := policy.Apply(registry, doc, auth.Predicates()); err != nil {
		return nil, err
	}
	logger.Info("policy loaded", slog.String("path", cfg.PolicyFile), slog.Int("privileges", len(doc.Privileges)))
	return registry, nil
}

func registerBuiltins(registry *auth.Registry) {
	for privilege, roles := range shared.CoreGrants() {
		registry.RegisterRoles(privilege, roles...)
	}
}

// ReferencedRoles lists every role named by a registered role rule, sorted.
func ReferencedRoles(registry *auth.Registry) []string {
	all := authz.Roles{}
	for _, name := range registry.Privileges() {
		roles, ok := registry.Roles(name)
		if !ok {
			continue
		}
		for role := range roles {
			all[role] = struct{}{}
		}
	}
	return all.Names()
}
