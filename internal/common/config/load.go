package config

import (
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvPrefix        = "COUPONSEED"
	userConfigName   = ".couponseed"
	defaultConfigKey = "config"
)

// LoadConfig reads config.yaml from defaultPath, then merges $HOME/.couponseed.yaml (when present) and
// every file in overrideConfigs, in order. Environment variables prefixed with COUPONSEED_ override
// file values; nested keys use underscores, e.g. COUPONSEED_UPLOAD_BUCKET.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(defaultConfigKey)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrapf(err, "error reading base config from %s", defaultPath)
		}
		log.Debugf("no base config found in %s", defaultPath)
	}

	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(userConfigName)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrapf(err, "error reading %s", v.ConfigFileUsed())
			}
		}
	}

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", overrideConfig)
		}
		log.Debugf("merged config from %s", overrideConfig)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, CustomHooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}
