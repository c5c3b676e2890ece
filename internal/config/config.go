// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"

	"github.com/recodex/sis-binding/internal/uniuri"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("SIS_BINDING_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings required to run the binding service.
// The remote API credentials are mandatory; the daemon cannot do anything
// meaningful without them.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.TokenSecret == "" {
		// tokens signed with a generated secret do not survive a restart
		c.Webserver.TokenSecret = uniuri.NewLen(48)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if c.Webserver.TokenExpiryHours == 0 {
		c.Webserver.TokenExpiryHours = 24
	}

	if c.Recodex.ExtensionID == "" {
		return errors.Wrap(ErrRecodexExtensionIDMissing, invalidErrMessage)
	}

	if c.Recodex.APIBase == "" {
		return errors.Wrap(ErrRecodexAPIBaseMissing, invalidErrMessage)
	}

	if !strings.HasSuffix(c.Recodex.APIBase, "/") {
		c.Recodex.APIBase += "/"
	}

	if c.Recodex.SisIDKey == "" {
		c.Recodex.SisIDKey = "cas-uk"
	}

	if c.Recodex.SisLoginKey == "" {
		c.Recodex.SisLoginKey = "ldap-uk"
	}

	if c.Sis.APIBase == "" {
		return errors.Wrap(ErrSisAPIBaseMissing, invalidErrMessage)
	}

	if !strings.HasSuffix(c.Sis.APIBase, "/") {
		c.Sis.APIBase += "/"
	}

	if c.Sis.Faculty == "" {
		return errors.Wrap(ErrSisFacultyMissing, invalidErrMessage)
	}

	if c.Sis.SecretRozvrhng == "" || c.Sis.SecretKdojekdo == "" {
		return errors.Wrap(ErrSisSecretMissing, invalidErrMessage)
	}

	return nil
}
