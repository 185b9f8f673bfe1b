package assertions

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ResponseFacts are the observable facts a probe collected. Fields not
// produced by the job kind stay at their zero values; assertions that need an
// absent fact fail deterministically instead of crashing.
type ResponseFacts struct {
	JobKind    string
	StatusCode int
	Headers    map[string]string
	Body       string
	DNSRecords map[string][]string // Keyed by record type ("A", "MX", ...)
}

// Evaluate runs one assertion against the collected facts.
func Evaluate(a Assertion, facts ResponseFacts) Result {
	switch a.Kind {
	case KindStatus:
		return evaluateStatus(a, facts)
	case KindHeader:
		return evaluateHeader(a, facts)
	case KindTextBody:
		return evaluateTextBody(a, facts)
	case KindJSONBody:
		return evaluateJSONBody(a, facts)
	case KindDNSRecord:
		return evaluateDNSRecord(a, facts)
	default:
		return fail("unsupported assertion kind: %s", a.Kind)
	}
}

// EvaluateAll applies every configured assertion; the tick passes only if all
// of them do. With no assertions configured the fallback policy applies: HTTP
// responses must be 2xx, DNS lookups must have produced at least one answer,
// and connect-style probes (tcp, database) pass by reaching evaluation at all.
func EvaluateAll(list []Assertion, facts ResponseFacts) Result {
	if len(list) == 0 {
		return defaultCheck(facts)
	}

	for _, a := range list {
		if res := Evaluate(a, facts); !res.Success {
			return res
		}
	}

	return ok()
}

func defaultCheck(facts ResponseFacts) Result {
	switch facts.JobKind {
	case "http":
		if facts.StatusCode >= 200 && facts.StatusCode < 300 {
			return ok()
		}
		return fail("expected a 2xx status code, got %d", facts.StatusCode)
	case "dns":
		for _, records := range facts.DNSRecords {
			if len(records) > 0 {
				return ok()
			}
		}
		return fail("no DNS records in response")
	default:
		// tcp and database probes fail before evaluation when the
		// connection cannot be established
		return ok()
	}
}

func evaluateStatus(a Assertion, facts ResponseFacts) Result {
	if facts.StatusCode == 0 {
		return fail("status assertion requires an HTTP response, none available")
	}

	want, err := a.targetInt()

	if err != nil {
		return fail("status assertion: %v", err)
	}

	matched, err := compareInts(a.Compare, facts.StatusCode, want)

	if err != nil {
		return fail("status assertion: %v", err)
	}

	if !matched {
		return fail("expected status code %s %d, got %d", a.Compare, want, facts.StatusCode)
	}

	return ok()
}

func evaluateHeader(a Assertion, facts ResponseFacts) Result {
	if facts.Headers == nil {
		return fail("header assertion requires an HTTP response, none available")
	}

	var value string

	for name, v := range facts.Headers {
		if strings.EqualFold(name, a.Key) {
			value = v
			break
		}
	}

	matched, err := compareStrings(a.Compare, value, a.targetString())

	if err != nil {
		return fail("header assertion: %v", err)
	}

	if !matched {
		return fail("header %q value %q failed %s check against %q", a.Key, value, a.Compare, a.targetString())
	}

	return ok()
}

func evaluateTextBody(a Assertion, facts ResponseFacts) Result {
	matched, err := compareStrings(a.Compare, facts.Body, a.targetString())

	if err != nil {
		return fail("body assertion: %v", err)
	}

	if !matched {
		return fail("response body failed %s check against %q", a.Compare, a.targetString())
	}

	return ok()
}

func evaluateJSONBody(a Assertion, facts ResponseFacts) Result {
	if !gjson.Valid(facts.Body) {
		return fail("response body is not valid JSON")
	}

	value := gjson.Get(facts.Body, a.Key).String()

	matched, err := compareStrings(a.Compare, value, a.targetString())

	if err != nil {
		return fail("json body assertion: %v", err)
	}

	if !matched {
		return fail("json path %q value %q failed %s check against %q", a.Key, value, a.Compare, a.targetString())
	}

	return ok()
}

func evaluateDNSRecord(a Assertion, facts ResponseFacts) Result {
	if facts.DNSRecords == nil {
		return fail("dns assertion requires a DNS response, none available")
	}

	records := facts.DNSRecords[strings.ToUpper(a.Key)]
	target := a.targetString()

	found := false

	for _, record := range records {
		if record == target {
			found = true
			break
		}
	}

	switch a.Compare {
	case CompareContains:
		if !found {
			return fail("expected %s record %q not found in DNS response", a.Key, target)
		}
	case CompareNotContains:
		if found {
			return fail("unexpected %s record %q found in DNS response", a.Key, target)
		}
	case CompareEq:
		if len(records) != 1 || records[0] != target {
			return fail("expected exactly one %s record equal to %q, got %v", a.Key, target, records)
		}
	case CompareNotEq:
		if found {
			return fail("%s record %q present in DNS response", a.Key, target)
		}
	default:
		return fail("unsupported record comparator: %s", a.Compare)
	}

	return ok()
}
