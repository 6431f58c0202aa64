package metrics

import (
	"floors-indexer/internal/config"

	"github.com/grafana/pyroscope-go"
)

func InitPProf(cfg *config.PyroscopeConfig, instanceID string) (*pyroscope.Profiler, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	pTags := map[string]string{
		"env":      "dev",
		"instance": instanceID,
	}
	for k, v := range cfg.Tags {
		pTags[k] = v
	}

	return pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.ServerAddr,
		AuthToken:       cfg.AuthToken,
		Logger:          pyroscope.StandardLogger,
		Tags:            pTags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,

			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,

			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	})
}
