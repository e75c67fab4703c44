package discovery

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for an endpoint.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyEndpoint] = info.EndpointName

	// Optional fields
	if info.Binding != "" {
		txt[TXTKeyBinding] = info.Binding
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	if info.Servers > 0 {
		txt[TXTKeyServers] = strconv.Itoa(info.Servers)
	}

	return txt
}

// DecodeTXT parses the TXT records of an endpoint.
func DecodeTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	info := &ServiceInfo{}

	var ok bool
	info.EndpointName, ok = txt[TXTKeyEndpoint]
	if !ok || info.EndpointName == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyEndpoint)
	}

	info.Binding = txt[TXTKeyBinding]
	info.Version = txt[TXTKeyVersion]
	if s, ok := txt[TXTKeyServers]; ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyServers, s)
		}
		info.Servers = n
	}

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
