package config

import (
	"errors"
)

var (
	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrRecodexExtensionIDMissing error if the ReCodEx extension identifier is not set.
	ErrRecodexExtensionIDMissing = errors.New("toml config recodex.extensionid can not be empty")

	// ErrRecodexAPIBaseMissing error if the ReCodEx API base url is not set.
	ErrRecodexAPIBaseMissing = errors.New("toml config recodex.apibase can not be empty")

	// ErrSisAPIBaseMissing error if the SIS API base url is not set.
	ErrSisAPIBaseMissing = errors.New("toml config sis.apibase can not be empty")

	// ErrSisFacultyMissing error if the SIS faculty identifier is not set.
	ErrSisFacultyMissing = errors.New("toml config sis.faculty can not be empty")

	// ErrSisSecretMissing error if one of the SIS module shared secrets is not set.
	ErrSisSecretMissing = errors.New("toml config sis secret tokens can not be empty")
)
