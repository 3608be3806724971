package cloudphone

import (
	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

// BuildRegistry constructs the provider registry from configuration.
// A provider with unset credentials is skipped, not registered with a
// broken adapter: a missing provider surfaces later as the registry's
// not-found outcome.
func BuildRegistry(cfg config.ProvidersConfig, log logger.Interface) *devicegateway.Registry {
	registry := devicegateway.NewRegistry()

	if cfg.Skyfone.APIBase != "" && cfg.Skyfone.Token != "" {
		registry.Register(NewSkyfoneAdapter(cfg.Skyfone, log))
	} else {
		log.Infow("skyfone adapter not configured, skipping")
	}

	if cfg.Phantomix.APIBase != "" && cfg.Phantomix.APIKey != "" {
		registry.Register(NewPhantomixAdapter(cfg.Phantomix, log))
	} else {
		log.Infow("phantomix adapter not configured, skipping")
	}

	if cfg.MorphCloud.APIBase != "" && cfg.MorphCloud.AccessKey != "" && cfg.MorphCloud.SecretKey != "" {
		registry.Register(NewMorphCloudAdapter(cfg.MorphCloud, log))
	} else {
		log.Infow("morphcloud adapter not configured, skipping")
	}

	log.Infow("provider registry built", "providers", registry.Names())
	return registry
}
