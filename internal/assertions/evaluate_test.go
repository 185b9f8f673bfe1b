package assertions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateStatusAssertions(t *testing.T) {
	tests := []struct {
		name        string
		assertion   Assertion
		facts       ResponseFacts
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "eq matches",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareEq, Target: float64(200)},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 200},
			wantSuccess: true,
		},
		{
			name:        "eq fails with actual code in message",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareEq, Target: float64(200)},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 500},
			wantSuccess: false,
			wantMessage: "500",
		},
		{
			name:        "not_eq",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareNotEq, Target: float64(500)},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 200},
			wantSuccess: true,
		},
		{
			name:        "lt boundary",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareLt, Target: float64(400)},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 400},
			wantSuccess: false,
		},
		{
			name:        "lte boundary",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareLte, Target: float64(400)},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 400},
			wantSuccess: true,
		},
		{
			name:        "gte with string target",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareGte, Target: "200"},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 301},
			wantSuccess: true,
		},
		{
			name:        "status assertion without http response fails deterministically",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareEq, Target: float64(200)},
			facts:       ResponseFacts{JobKind: "dns", DNSRecords: map[string][]string{"A": {"1.2.3.4"}}},
			wantSuccess: false,
			wantMessage: "requires an HTTP response",
		},
		{
			name:        "non-numeric target fails",
			assertion:   Assertion{Kind: KindStatus, Compare: CompareEq, Target: "two hundred"},
			facts:       ResponseFacts{JobKind: "http", StatusCode: 200},
			wantSuccess: false,
			wantMessage: "not numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.assertion, tt.facts)

			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantMessage != "" {
				assert.Contains(t, res.Message, tt.wantMessage)
			}
		})
	}
}

func TestEvaluateHeaderAssertions(t *testing.T) {
	facts := ResponseFacts{
		JobKind:    "http",
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}

	res := Evaluate(Assertion{Kind: KindHeader, Compare: CompareContains, Key: "content-type", Target: "application/json"}, facts)
	assert.True(t, res.Success, "header lookup is case-insensitive")

	res = Evaluate(Assertion{Kind: KindHeader, Compare: CompareEmpty, Key: "X-Missing"}, facts)
	assert.True(t, res.Success, "missing header compares as empty")

	res = Evaluate(Assertion{Kind: KindHeader, Compare: CompareNotEmpty, Key: "X-Missing"}, facts)
	assert.False(t, res.Success)

	res = Evaluate(Assertion{Kind: KindHeader, Compare: CompareEq, Key: "Content-Type", Target: "text/html"}, facts)
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "Content-Type")
}

func TestEvaluateJSONBodyAssertions(t *testing.T) {
	facts := ResponseFacts{
		JobKind:    "http",
		StatusCode: 200,
		Body:       `{"status":"healthy","checks":{"db":"up"},"version":3}`,
	}

	res := Evaluate(Assertion{Kind: KindJSONBody, Compare: CompareEq, Key: "status", Target: "healthy"}, facts)
	assert.True(t, res.Success)

	res = Evaluate(Assertion{Kind: KindJSONBody, Compare: CompareEq, Key: "checks.db", Target: "up"}, facts)
	assert.True(t, res.Success)

	res = Evaluate(Assertion{Kind: KindJSONBody, Compare: CompareEq, Key: "version", Target: float64(3)}, facts)
	assert.True(t, res.Success)

	// A parse failure is a structured assertion failure, never a panic.
	res = Evaluate(Assertion{Kind: KindJSONBody, Compare: CompareEq, Key: "status", Target: "healthy"}, ResponseFacts{JobKind: "http", Body: "not json"})
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "not valid JSON")

	res = Evaluate(Assertion{Kind: KindJSONBody, Compare: CompareEmpty, Key: "missing.path"}, facts)
	assert.True(t, res.Success, "absent path compares as empty")
}

func TestEvaluateTextBodyAssertions(t *testing.T) {
	facts := ResponseFacts{JobKind: "http", StatusCode: 200, Body: "service is OK"}

	assert.True(t, Evaluate(Assertion{Kind: KindTextBody, Compare: CompareContains, Target: "OK"}, facts).Success)
	assert.False(t, Evaluate(Assertion{Kind: KindTextBody, Compare: CompareNotContains, Target: "OK"}, facts).Success)
	assert.True(t, Evaluate(Assertion{Kind: KindTextBody, Compare: CompareNotEmpty}, facts).Success)
}

func TestEvaluateDNSRecordAssertions(t *testing.T) {
	facts := ResponseFacts{
		JobKind:    "dns",
		DNSRecords: map[string][]string{"A": {"93.184.216.34", "93.184.216.35"}},
	}

	assert.True(t, Evaluate(Assertion{Kind: KindDNSRecord, Compare: CompareContains, Key: "a", Target: "93.184.216.34"}, facts).Success)
	assert.False(t, Evaluate(Assertion{Kind: KindDNSRecord, Compare: CompareNotContains, Key: "A", Target: "93.184.216.34"}, facts).Success)
	assert.False(t, Evaluate(Assertion{Kind: KindDNSRecord, Compare: CompareEq, Key: "A", Target: "93.184.216.34"}, facts).Success,
		"eq requires a single answer")

	res := Evaluate(Assertion{Kind: KindDNSRecord, Compare: CompareContains, Key: "A", Target: "1.1.1.1"},
		ResponseFacts{JobKind: "http", StatusCode: 200})
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "requires a DNS response")
}

func TestEvaluateAll(t *testing.T) {
	facts := ResponseFacts{
		JobKind:    "http",
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"ok":true}`,
	}

	list := []Assertion{
		{Kind: KindStatus, Compare: CompareEq, Target: float64(200)},
		{Kind: KindHeader, Compare: CompareContains, Key: "Content-Type", Target: "json"},
		{Kind: KindJSONBody, Compare: CompareEq, Key: "ok", Target: "true"},
	}

	assert.True(t, EvaluateAll(list, facts).Success)

	// First failure wins.
	list[0].Target = float64(204)
	res := EvaluateAll(list, facts)
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "204")
}

func TestEvaluateAllFallback(t *testing.T) {
	// No assertions configured: 2xx-equivalent default applies.
	assert.True(t, EvaluateAll(nil, ResponseFacts{JobKind: "http", StatusCode: 204}).Success)
	assert.False(t, EvaluateAll(nil, ResponseFacts{JobKind: "http", StatusCode: 503}).Success)
	assert.True(t, EvaluateAll(nil, ResponseFacts{JobKind: "dns", DNSRecords: map[string][]string{"A": {"1.2.3.4"}}}).Success)
	assert.False(t, EvaluateAll(nil, ResponseFacts{JobKind: "dns", DNSRecords: map[string][]string{}}).Success)
	assert.True(t, EvaluateAll(nil, ResponseFacts{JobKind: "tcp"}).Success)
}

func TestParseList(t *testing.T) {
	list, err := ParseList([]byte(`[{"kind":"status","compare":"eq","target":200}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, KindStatus, list[0].Kind)

	_, err = ParseList([]byte(`{`))
	assert.Error(t, err)

	list, err = ParseList(nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}
