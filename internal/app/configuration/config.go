package configuration

import (
	"context"

	"github.com/form3tech-oss/pact-consumer/internal/app/mockserver"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	AdminPort  int    `env:"ADMIN_PORT,default=8080"` // Port of the admin API
	LogLevel   string `env:"LOG_LEVEL,default=info"`  // logrus level name
	LogFormat  string `env:"LOG_FORMAT,default=text"` // text or json
	LogFile    string `env:"LOG_FILE"`                // Also log to this file, rotated
	PluginDir  string `env:"PLUGIN_DIR"`              // Directory of installed plugin manifests
	MockServer mockserver.Config
}

func NewFromEnv() (Config, error) {
	return newFromLookuper(context.Background(), envconfig.OsLookuper())
}

func newFromLookuper(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var config Config
	err := envconfig.ProcessWith(ctx, &config, l)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	return config, nil
}

// Registry returns the plugin registry mock servers resolve contents with.
// Without a plugin directory only the builtin plugins are available.
func (c Config) Registry() *plugin.Registry {
	if c.PluginDir == "" {
		return plugin.Default
	}
	return plugin.NewRegistry(plugin.ManifestLoader{Dir: c.PluginDir}, plugin.BuiltinLoader{})
}
