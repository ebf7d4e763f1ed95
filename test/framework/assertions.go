package framework

import "encoding/json"

// AssertSuccess fails unless the result is a well-formed success
// envelope with the expected status.
func AssertSuccess(t TestingT, r *Result, status int) {
	t.Helper()

	if r.Status != status {
		t.Fatalf("expected status %d, got %d (error: %+v)", status, r.Status, r.Error)
	}
	if !r.Success {
		t.Fatalf("expected success envelope, got error: %+v", r.Error)
	}
	if r.Error != nil {
		t.Errorf("success envelope must carry a null error, got %+v", r.Error)
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		t.Errorf("success envelope must carry non-null data")
	}
}

// AssertErrorCode fails unless the result is an error envelope with the
// given status and code.
func AssertErrorCode(t TestingT, r *Result, status int, code string) {
	t.Helper()

	if r.Status != status {
		t.Fatalf("expected status %d, got %d", status, r.Status)
	}
	if r.Success {
		t.Fatalf("expected error envelope, got success with data %s", string(r.Data))
	}
	if r.Error == nil {
		t.Fatalf("error envelope must carry an error object")
	}
	if r.Error.Code != code {
		t.Fatalf("expected error code %s, got %s (%s)", code, r.Error.Code, r.Error.Message)
	}
	if len(r.Data) != 0 && string(r.Data) != "null" {
		t.Errorf("error envelope must carry null data, got %s", string(r.Data))
	}
}

// AssertCached fails unless metadata.cached matches.
func AssertCached(t TestingT, r *Result, cached bool) {
	t.Helper()

	if r.Metadata.Cached == nil {
		t.Fatalf("metadata.cached is absent")
	}
	if *r.Metadata.Cached != cached {
		t.Fatalf("expected cached=%v, got %v", cached, *r.Metadata.Cached)
	}
}

// SameJSON reports whether two raw payloads are structurally equal.
func SameJSON(a, b json.RawMessage) bool {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return equalValue(va, vb)
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !equalValue(v, bv[k]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
