package pipeline

import (
	"regexp"

	"github.com/partstrade/trade-service/internal/types"
)

// MatchConfig picks the config of a provider that applies to an incoming
// file. A config matches when every pattern it sets matches; configs with
// patterns are preferred over a catch-all, and a lone config always applies.
// nil means no config applies.
func MatchConfig(configs []types.ProviderPriceListConfig, filename, subject string) *types.ProviderPriceListConfig {
	if len(configs) == 1 {
		return &configs[0]
	}
	var fallback *types.ProviderPriceListConfig
	for i := range configs {
		cfg := &configs[i]
		if cfg.FilenamePattern == nil && cfg.SubjectPattern == nil {
			if fallback == nil {
				fallback = cfg
			}
			continue
		}
		if matches(cfg.FilenamePattern, filename) && matches(cfg.SubjectPattern, subject) {
			return cfg
		}
	}
	return fallback
}

func matches(pattern *string, value string) bool {
	if pattern == nil || *pattern == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + *pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
