package log

import "strings"

const (
	// maskKeepPrefix is how many leading characters of a credential
	// survive masking.
	maskKeepPrefix = 4
	// maskMaxStars bounds the masked tail so log lines stay short and the
	// original secret length is not recoverable.
	maskMaxStars = 12
)

// sensitiveParams lists query parameter names (lowercased) whose values
// carry credentials and must never be logged in full.
var sensitiveParams = map[string]struct{}{
	"servicekey": {},
	"confmkey":   {},
	"apikey":     {},
	"authkey":    {},
}

// MaskSecret keeps the first four characters of a credential and replaces
// the remainder with asterisks. Secrets of four characters or fewer are
// masked entirely.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= maskKeepPrefix {
		return strings.Repeat("*", len(secret))
	}
	stars := len(secret) - maskKeepPrefix
	if stars > maskMaxStars {
		stars = maskMaxStars
	}
	return secret[:maskKeepPrefix] + strings.Repeat("*", stars)
}

// MaskParams returns a copy of params that is safe to log: values of
// credential-bearing parameters are masked, everything else passes
// through unchanged.
func MaskParams(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if _, ok := sensitiveParams[strings.ToLower(k)]; ok {
			out[k] = MaskSecret(v)
			continue
		}
		out[k] = v
	}
	return out
}
