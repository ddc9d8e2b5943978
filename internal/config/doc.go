// Package config provides centralized configuration management for the
// TSS converter. It handles loading configuration from multiple sources,
// validation, and a type-safe API for the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern TSS_* for namespacing:
//
//	TSS_SERVER_PORT=8091
//	TSS_LOGGING_LEVEL=debug
//	TSS_LIMITS_MAX_FILE_SIZE_BYTES=52428800
//	TSS_DEDUPE_MARKER=SD
//
// # Configuration File
//
// A YAML file named by TSS_CONFIG_FILE is loaded when set; otherwise
// ./config.yaml and ./configs/config.yaml are probed. The file merges
// over the defaults, so it only needs to state what differs. Mapping
// tables merge per sheet type: a file may redefine the "P" table and
// inherit the built-in "F", "M" and "C" tables.
//
// # Validation
//
// All configuration is validated at load time: tag constraints through
// go-playground/validator, plus hand checks that column references are
// well formed and no mapping table writes two rules to one target.
//
// # Usage
//
// Load configuration at startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The returned Config is a value; stages receive the sub-sections they
// need and never mutate shared state.
package config
