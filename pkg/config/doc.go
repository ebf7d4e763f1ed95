/*
Package config resolves the service configuration in three layers:

	compiled defaults → optional YAML file → environment variables

Every run follows the same pipeline whether or not a file exists; the
environment always wins. Secrets (the portal API keys) only ever enter
through the environment and are never written to or read from the YAML
layer.

# Environment Variables

	PUBLIC_DATA_API_KEY               primary portal credential (required to serve)
	API_KEY_EXPIRY                    primary key expiry, YYYY-MM-DD or RFC 3339
	PUBLIC_DATA_<SERVICE>_API_KEY     per-service override (ADDRESS, BUSINESS,
	                                  APARTMENT, REALESTATE, BUILDING, SUBWAY)
	LOG_LEVEL                         debug | info | warn | error
	NODE_ENV                          production enables error shaping
	STRICT_KOREA_BOUNDS               reject out-of-bounds WGS84 input
	PORT                              listener port shorthand

# YAML File

Policy knobs (listener address, cache bounds, upstream timeouts and
retry curve, health thresholds) live in the YAML layer:

	server:
	  addr: ":8080"
	upstream:
	  timeout_seconds: 30
	  max_retries: 3
	  retry_delay_ms: 1000
	health:
	  cache_memory_percent: 90

Validate runs after resolution and returns CONFIGURATION_ERROR causes
for anything a running service could not tolerate.
*/
package config
