package probes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/types"
)

// CheckDNS resolves the configured record type and collects the answers as
// facts for the assertion engine. An empty answer set is a probe failure.
func CheckDNS(ctx context.Context, config *types.DNSConfig) (Outcome, error) {
	timeout := config.Timeout

	if timeout == 0 {
		timeout = 5 // 5 seconds timeout by default
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	resolver := &net.Resolver{}
	recordType := strings.ToUpper(config.RecordType)

	start := time.Now()

	var (
		records []string
		err     error
	)

	switch recordType {
	case "A":
		records, err = lookupARecords(ctx, resolver, config.Domain)
	case "AAAA":
		records, err = lookupAAAARecords(ctx, resolver, config.Domain)
	case "CNAME":
		records, err = lookupCNAMERecord(ctx, resolver, config.Domain)
	case "MX":
		records, err = lookupMXRecords(ctx, resolver, config.Domain)
	case "TXT":
		records, err = lookupTXTRecords(ctx, resolver, config.Domain)
	case "NS":
		records, err = lookupNSRecords(ctx, resolver, config.Domain)
	default:
		return Outcome{}, errors.New("unsupported DNS record type: " + config.RecordType)
	}

	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return Outcome{LatencyMs: elapsed, Timings: Timings{DNSMs: elapsed}}, err
	}

	if len(records) == 0 {
		return Outcome{LatencyMs: elapsed, Timings: Timings{DNSMs: elapsed}},
			fmt.Errorf("no %s records found for %s", recordType, config.Domain)
	}

	return Outcome{
		Facts: assertions.ResponseFacts{
			JobKind:    "dns",
			DNSRecords: map[string][]string{recordType: records},
		},
		Timings:   Timings{DNSMs: elapsed},
		LatencyMs: elapsed,
	}, nil
}

func lookupARecords(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	ips, err := resolver.LookupIPAddr(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve A record for %s: %v", domain, err)
	}

	var records []string

	for _, ip := range ips {
		if ip.IP.To4() != nil {
			records = append(records, ip.IP.String())
		}
	}

	return records, nil
}

func lookupAAAARecords(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	ips, err := resolver.LookupIPAddr(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve AAAA record for %s: %v", domain, err)
	}

	var records []string

	for _, ip := range ips {
		if ip.IP.To4() == nil {
			records = append(records, ip.IP.String())
		}
	}

	return records, nil
}

func lookupCNAMERecord(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	cname, err := resolver.LookupCNAME(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve CNAME for %s: %v", domain, err)
	}

	if cname == "" {
		return nil, nil
	}

	return []string{strings.TrimSuffix(cname, ".")}, nil
}

func lookupMXRecords(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	mxRecords, err := resolver.LookupMX(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve MX records for %s: %v", domain, err)
	}

	var records []string

	for _, mx := range mxRecords {
		records = append(records, strings.TrimSuffix(mx.Host, "."))
	}

	return records, nil
}

func lookupTXTRecords(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	txtRecords, err := resolver.LookupTXT(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve TXT records for %s: %v", domain, err)
	}

	return txtRecords, nil
}

func lookupNSRecords(ctx context.Context, resolver *net.Resolver, domain string) ([]string, error) {
	nsRecords, err := resolver.LookupNS(ctx, domain)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve NS records for %s: %v", domain, err)
	}

	var records []string

	for _, ns := range nsRecords {
		records = append(records, strings.TrimSuffix(ns.Host, "."))
	}

	return records, nil
}
