package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Assertion kinds. The kind decides which response facts are consulted and
// which comparator family applies.
const (
	KindStatus    = "status"
	KindHeader    = "header"
	KindTextBody  = "textBody"
	KindJSONBody  = "jsonBody"
	KindDNSRecord = "dnsRecord"
)

// Comparators. Numeric kinds use eq..lte on integers, string kinds add
// contains/empty variants, record kinds use the contains/eq subset.
const (
	CompareEq          = "eq"
	CompareNotEq       = "not_eq"
	CompareGt          = "gt"
	CompareGte         = "gte"
	CompareLt          = "lt"
	CompareLte         = "lte"
	CompareContains    = "contains"
	CompareNotContains = "not_contains"
	CompareEmpty       = "empty"
	CompareNotEmpty    = "not_empty"
)

// Assertion is one declarative check against a probe response. Key carries
// the header name for header assertions, the JSON path for jsonBody
// assertions and the record type for dnsRecord assertions. Target is the
// configured comparison value; JSON configuration may supply it as a string
// or a number.
type Assertion struct {
	Kind    string      `json:"kind"`
	Compare string      `json:"compare"`
	Key     string      `json:"key,omitempty"`
	Target  interface{} `json:"target"`
}

// Result is the outcome of evaluating a single assertion. Evaluation never
// panics and never returns an error; every failure mode collapses into a
// false Result with a descriptive message.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func fail(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Validate rejects assertions whose kind or comparator is unknown, so bad
// configuration is caught at write time instead of on every probe tick.
func (a Assertion) Validate() error {
	switch a.Kind {
	case KindStatus, KindHeader, KindTextBody, KindJSONBody, KindDNSRecord:
	default:
		return fmt.Errorf("unknown assertion kind: %s", a.Kind)
	}

	switch a.Compare {
	case CompareEq, CompareNotEq, CompareGt, CompareGte, CompareLt, CompareLte,
		CompareContains, CompareNotContains, CompareEmpty, CompareNotEmpty:
	default:
		return fmt.Errorf("unknown comparator: %s", a.Compare)
	}

	switch a.Kind {
	case KindHeader, KindJSONBody, KindDNSRecord:
		if a.Key == "" {
			return fmt.Errorf("%s assertions require a key", a.Kind)
		}
	}

	return nil
}

// ParseList decodes the JSONB assertion list stored on a monitor.
func ParseList(raw []byte) ([]Assertion, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []Assertion

	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("invalid assertion list: %w", err)
	}

	return list, nil
}

func (a Assertion) targetString() string {
	switch v := a.Target.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; render integers without a fraction
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (a Assertion) targetInt() (int, error) {
	switch v := a.Target.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("target %q is not numeric", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("target %v is not numeric", v)
	}
}

func compareInts(compare string, got, want int) (bool, error) {
	switch compare {
	case CompareEq:
		return got == want, nil
	case CompareNotEq:
		return got != want, nil
	case CompareGt:
		return got > want, nil
	case CompareGte:
		return got >= want, nil
	case CompareLt:
		return got < want, nil
	case CompareLte:
		return got <= want, nil
	default:
		return false, fmt.Errorf("unsupported numeric comparator: %s", compare)
	}
}

func compareStrings(compare, got, want string) (bool, error) {
	switch compare {
	case CompareEq:
		return got == want, nil
	case CompareNotEq:
		return got != want, nil
	case CompareContains:
		return strings.Contains(got, want), nil
	case CompareNotContains:
		return !strings.Contains(got, want), nil
	case CompareEmpty:
		return got == "", nil
	case CompareNotEmpty:
		return got != "", nil
	case CompareGt:
		return got > want, nil
	case CompareGte:
		return got >= want, nil
	case CompareLt:
		return got < want, nil
	case CompareLte:
		return got <= want, nil
	default:
		return false, fmt.Errorf("unsupported string comparator: %s", compare)
	}
}
