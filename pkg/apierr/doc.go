/*
Package apierr defines Kodal's closed error taxonomy.

Every error that crosses a component boundary is an *apierr.Error tagged
with one of fourteen codes. The code pins the HTTP status the gateway
emits and a retry hint for API consumers; components never invent status
codes of their own.

# Taxonomy

	Code                      Status  Retryable  Raised by
	AUTH_ERROR                   401      no     admission (missing/invalid credential)
	API_KEY_ERROR                401      no     keyring (missing/expired provider key)
	AUTHORIZATION_ERROR          403      no     admission (principal lacks access)
	VALIDATION_ERROR             400      no     gateway (query/body check failed)
	SCHEMA_VALIDATION_ERROR      400      no     gateway (payload shape mismatch)
	NOT_FOUND                    404      no     gateway (unknown route/resource)
	RATE_LIMIT_EXCEEDED          429     yes     ratelimit (bucket exhausted)
	EXTERNAL_API_ERROR           502     yes     upstream (error status/malformed body)
	TIMEOUT_ERROR                504     yes     upstream (deadline exceeded)
	SERVICE_UNAVAILABLE          503     yes     upstream (circuit breaker open)
	INTERNAL_SERVER_ERROR        500      no     anywhere (unclassified failure)
	COORDINATE_ERROR             400      no     coord (invalid point/unknown system)
	CACHE_ERROR                  500      no     cache (internal operation failed)
	CONFIGURATION_ERROR          500      no     startup (invariant violated)

# Usage

Creating and enriching:

	return apierr.New(apierr.CodeValidation, "x must be a number").
		WithDetail("parameter", "x")

Wrapping a cause:

	return apierr.Wrap(apierr.CodeExternalAPI, "upstream request failed", err).
		WithDetail("status", resp.StatusCode)

Normalizing at the gateway edge:

	e := apierr.From(err) // any error → *Error, default INTERNAL_SERVER_ERROR

Internal boundaries return errors; only the gateway converts them into
wire envelopes. Retries inside the upstream client consult the per-error
Retryable flag, which may override the code default (a 404 from the portal
carries EXTERNAL_API_ERROR but is not retryable).

# Integration Points

  - pkg/gateway: From() + HTTPStatus() at the response edge
  - pkg/upstream: classification of transport/status outcomes
  - pkg/keyring, pkg/coord, pkg/cache: domain failures
  - cmd/kodal: CONFIGURATION_ERROR terminates startup
*/
package apierr
