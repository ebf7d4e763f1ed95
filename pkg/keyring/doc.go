/*
Package keyring holds the API keys used to call Korean public-data portals.

The registry is built once at process start from the environment, dispenses
secrets to the upstream client, watches expiry windows, and guarantees that
a secret never reaches a log line or a rate-limit bucket key in raw form.

# Key Sources

	PUBLIC_DATA_API_KEY              primary key (required)
	API_KEY_EXPIRY                   ISO-8601 expiry for the primary key
	PUBLIC_DATA_ADDRESS_API_KEY      per-service override
	PUBLIC_DATA_BUSINESS_API_KEY         "
	PUBLIC_DATA_APARTMENT_API_KEY        "
	PUBLIC_DATA_REALESTATE_API_KEY       "
	PUBLIC_DATA_BUILDING_API_KEY         "
	PUBLIC_DATA_SUBWAY_API_KEY           "

Keys must match ^[A-Za-z0-9%+/=]{20,}$ — the shape the portal issues. A
missing or malformed primary key fails startup with CONFIGURATION_ERROR;
malformed service keys are skipped with a warning. Keys without an expiry
get a far-future sentinel.

# Record Lifecycle

	       ┌─────────┐   expiry passes (lazy)   ┌─────────┐
	load → │ active  │ ───────────────────────► │ expired │
	       └────┬────┘                          └─────────┘
	            │  Suspend()                    ┌───────────┐
	            └─────────────────────────────► │ suspended │
	                                            └───────────┘

Transitions are monotonic; a record never returns to active and its secret
is never rewritten. Get updates LastUsedAt on success and flips status to
expired lazily when the expiry instant has passed.

# Lookup Semantics

Get(provider) returns the provider's secret, falling back to the primary
key when the provider has no record of its own. It fails with
API_KEY_ERROR when the selected record is expired or suspended, or when no
primary exists.

# Expiry Surveillance

CheckExpiry is advisory: it logs each record's posture in three bands —
EXPIRED (error level), URGENT (≤7 days, warn), WARNING (≤30 days, warn) —
with the key masked, and publishes key.expiring / key.expired events. The
health checker uses Stats(): zero active keys reports the component down,
any key expiring within 30 days reports it degraded.

# Rate-Limit Surrogate

Identifier(provider) yields "provider:<sha256 prefix>" so admission
buckets never key on secret material.

# Usage

	reg, err := keyring.New(keyring.Options{
		Primary:       os.Getenv("PUBLIC_DATA_API_KEY"),
		PrimaryExpiry: expiry,
		Services:      serviceKeys,
		Logger:        log.WithComponent("keyring"),
		Broker:        broker,
	})
	if err != nil {
		return err // CONFIGURATION_ERROR
	}

	secret, err := reg.Get("address")
*/
package keyring
