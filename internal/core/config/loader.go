package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/core/config/validation"
	"github.com/signalfx/sqldtu-perfmon/internal/utils"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// LoadConfig reads the config file at configPath, renders any envvar
// references in it and returns the validated config.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is required")
	}

	content, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config file %s", configPath)
	}

	return loadYAML(content)
}

func loadYAML(fileContent []byte) (*Config, error) {
	config := &Config{}

	preprocessedContent := preprocessConfig(fileContent)

	err := yaml.UnmarshalStrict(preprocessedContent, config)
	if err != nil {
		return nil, utils.YAMLErrorWithContext(preprocessedContent, err)
	}

	if err := defaults.Set(config); err != nil {
		panic(fmt.Sprintf("Config defaults are wrong types: %s", err))
	}

	if err := validation.ValidateStruct(config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return config, nil
}

var envVarRE = regexp.MustCompile(`\${\s*([\w-]+?)\s*}`)

// Replaces envvar syntax with the actual envvars
func preprocessConfig(content []byte) []byte {
	return envVarRE.ReplaceAllFunc(content, func(bs []byte) []byte {
		parts := envVarRE.FindSubmatch(bs)
		envvar := string(parts[1])

		val, ok := os.LookupEnv(envvar)
		if !ok {
			log.WithFields(log.Fields{
				"envvar": envvar,
			}).Warn("Config references an envvar that is not set")
		}

		return []byte(val)
	})
}
