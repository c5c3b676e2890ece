package config

import (
	"github.com/recodex/sis-binding/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Recodex   Recodex
	Sis       Sis
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver

	// TokenSecret signs access tokens issued by this service.
	TokenSecret string
	// TokenExpiryHours limits the lifetime of issued access tokens.
	TokenExpiryHours int
}

// Recodex holds the settings for the ReCodEx API client.
type Recodex struct {
	// APIBase is the URL prefix of the ReCodEx REST API (without the version suffix).
	APIBase string
	// ExtensionID identifies this extension in the ReCodEx configuration;
	// it also scopes the group attributes owned by this service.
	ExtensionID string
	// VerifySSL can be disabled for testing deployments with self-signed certs.
	VerifySSL *bool
	// SisIDKey is the external-login service key under which ReCodEx stores the university personal ID.
	SisIDKey string
	// SisLoginKey is the external-login service key under which ReCodEx stores the SIS/LDAP login.
	SisLoginKey string
}

// Sis holds the settings for the SIS API client.
type Sis struct {
	// APIBase is the URL prefix of the SIS REST modules.
	APIBase string
	// Faculty identifier used in scheduling queries.
	Faculty string
	// SecretRozvrhng is the shared secret for the scheduling module.
	SecretRozvrhng string
	// SecretKdojekdo is the shared secret for the personnel module.
	SecretKdojekdo string
	// VerifySSL can be disabled for testing deployments with self-signed certs.
	VerifySSL *bool
}

// Verify resolves the optional VerifySSL flag (enabled unless explicitly disabled).
func (r Recodex) Verify() bool {
	return r.VerifySSL == nil || *r.VerifySSL
}

// Verify resolves the optional VerifySSL flag (enabled unless explicitly disabled).
func (s Sis) Verify() bool {
	return s.VerifySSL == nil || *s.VerifySSL
}
