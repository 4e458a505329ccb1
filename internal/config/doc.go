// Package config provides configuration loading and validation for the summary
// chat service. Settings come from a YAML file; secrets and endpoints can be
// overridden from the environment, optionally populated from a .env file.
package config
