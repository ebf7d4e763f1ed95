/*
Package log provides structured logging for Kodal with credential masking.

The log package wraps zerolog with a small, opinionated surface: a global
logger initialized once at process start, component-scoped child loggers,
and masking helpers that guarantee upstream credentials never reach a log
sink in full.

# Architecture

	┌──────────────────── LOGGING PIPELINE ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                    │           │
	│  │  - Initialized via Init(Config)             │           │
	│  │  - Level gate: debug/info/warn/error        │           │
	│  │  - JSON output (production)                 │           │
	│  │  - Console output (interactive)             │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          Child Loggers                      │           │
	│  │                                             │           │
	│  │  WithComponent("cache")   → component field │           │
	│  │  WithRequestID(id)        → request_id      │           │
	│  │  WithProvider("address")  → provider        │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          Masking Helpers                    │           │
	│  │                                             │           │
	│  │  MaskSecret("abcd1234…") → "abcd****…"      │           │
	│  │  MaskParams(query)       → serviceKey       │           │
	│  │                            value masked     │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Masking Rules

Credentials keep their first four characters; everything after is replaced
with asterisks, capped at twelve so the original length is not
recoverable. MaskParams applies the same rule to the values of
credential-bearing query parameters (serviceKey and friends) and leaves
all other parameters untouched. Every component that logs request
parameters must route them through MaskParams first.

# Usage

Initialization (once, in main):

	log.Init(log.Config{
		Level:      log.ParseLevel(os.Getenv("LOG_LEVEL")),
		JSONOutput: true,
	})

Component loggers:

	logger := log.WithComponent("ratelimit")
	logger.Warn().
		Str("identifier", id).
		Str("tier", string(tier)).
		Msg("rate limit exceeded")

Masked request logging:

	logger.Debug().
		Str("url", endpoint).
		Interface("params", log.MaskParams(params)).
		Msg("upstream request")

# Integration Points

This package integrates with:

  - pkg/keyring: masks secrets in expiry reports
  - pkg/upstream: masks serviceKey in request logs
  - pkg/gateway: access logs with request_id correlation
  - cmd/kodal: level selection from LOG_LEVEL / config file

# Best Practices

Do:
  - Create one component logger per subsystem at construction
  - Route any map that can contain credentials through MaskParams
  - Use Debug for per-request detail, Info for lifecycle changes

Don't:
  - Log a secret directly, even at debug level
  - Re-initialize the global logger after startup
  - Build log lines with fmt.Sprintf; use typed fields
*/
package log
