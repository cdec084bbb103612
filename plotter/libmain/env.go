package libmain

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kardianos/osext"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"marine/plotter/log"
)

const (
	EnvName = "PLOTTER_ENV"

	DefaultPort = 4999
)

var validate = validator.New()

// Env is the process configuration read from the environment.
type Env struct {
	Port             int    `validate:"min=1,max=65535"`
	Production       bool   `validate:"-"`
	ChartsPath       string `validate:"required"`
	ClientConfigFile string `validate:"required"`
	PublicPath       string `validate:"required"`
}

// LoadEnv reads PORT, CHARTS_PATH, CLIENT_CONFIG_FILE, PUBLIC_PATH and
// PLOTTER_ENV. Unset paths default next to the executable; "~" expands to
// the home directory.
func LoadEnv() (Env, error) {
	base, err := osext.ExecutableFolder()
	if err != nil {
		base = "."
	}
	env := Env{
		Port:             DefaultPort,
		Production:       os.Getenv(EnvName) == "production",
		ChartsPath:       filepath.Join(base, "charts"),
		ClientConfigFile: filepath.Join(base, "client-config.json"),
		PublicPath:       filepath.Join(base, "public"),
	}
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return env, errors.Wrapf(err, "PORT %q", port)
		}
		env.Port = n
	}
	for name, target := range map[string]*string{
		"CHARTS_PATH":        &env.ChartsPath,
		"CLIENT_CONFIG_FILE": &env.ClientConfigFile,
		"PUBLIC_PATH":        &env.PublicPath,
	} {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
		expanded, err := homedir.Expand(*target)
		if err != nil {
			return env, errors.Wrapf(err, "%v", name)
		}
		*target = expanded
	}
	if err := validate.Struct(env); err != nil {
		return env, errors.Wrap(err, "environment")
	}
	return env, nil
}

// LoadClientConfig reads the client configuration handed to renderers and
// layered over the default settings. YAML is accepted for .yaml and .yml
// files, JSON otherwise. A missing or unreadable file yields an empty
// configuration.
func LoadClientConfig(file string) map[string]interface{} {
	config, err := ReadClientConfig(file)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			log.Info("No client config file found at %v", file)
		} else {
			log.Error("Error loading client config file: %v", err)
		}
		return map[string]interface{}{}
	}
	return config
}

func ReadClientConfig(file string) (map[string]interface{}, error) {
	blob, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	config := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(blob, &config)
	default:
		err = json.Unmarshal(blob, &config)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %v", file)
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	return config, nil
}
