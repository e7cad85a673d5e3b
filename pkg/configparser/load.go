package configparser

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Load fills dst from defaults, the optional YAML file at path and environment
// variables, in increasing priority. Nested keys map to env names by joining
// with "_": dispatch.proposal_timeout is DISPATCH_PROPOSAL_TIMEOUT.
//
// A missing file is not an error: defaults and environment are enough to run.
func Load(path string, defaults map[string]any, dst any) error {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("could not read config file %q: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("could not decode config: %w", err)
	}

	return nil
}
