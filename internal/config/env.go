package config

import "strings"

// Environment variables read at startup.
const (
	// EnvDSN supplies the DSN when --dsn is not given.
	EnvDSN = "SENTRY_DSN"

	// EnvConfigPath supplies the config file when --config is not given.
	EnvConfigPath = "CRON_SENTRY_CONFIG"

	// EnvExtraPrefix marks variables copied into every report's extra map.
	EnvExtraPrefix = "CRON_SENTRY_EXTRA_"
)

// ExtraFromEnv returns every CRON_SENTRY_EXTRA_<key>=<value> entry of
// environ as key: value. Keys keep their case; empty keys are skipped.
func ExtraFromEnv(environ []string) map[string]string {
	extra := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key, found := strings.CutPrefix(name, EnvExtraPrefix)
		if !found || key == "" {
			continue
		}
		extra[key] = value
	}
	return extra
}

// Lookup returns the value of name in environ.
func Lookup(environ []string, name string) (string, bool) {
	for i := len(environ) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(environ[i], "=")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}

// ApplyEnv overlays the environment on c: a non-empty SENTRY_DSN replaces
// the file's DSN and extra variables override file extras with the same key.
func (c *Config) ApplyEnv(environ []string) {
	if dsn, ok := Lookup(environ, EnvDSN); ok && dsn != "" {
		c.DSN = dsn
	}
	if c.Extra == nil {
		c.Extra = map[string]string{}
	}
	for k, v := range ExtraFromEnv(environ) {
		c.Extra[k] = v
	}
}
