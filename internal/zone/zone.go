// Package zone turns loosely formatted user input into the UGC identifiers
// the NWS alerts endpoint accepts: "TXZ001" for forecast zones and "TXC005"
// for counties.
package zone

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidZone   = errors.New("invalid zone")
	ErrInvalidCounty = errors.New("invalid county")
)

const codeLength = 3

// Identifier is computed once at setup and never recomputed afterwards.
type Identifier struct {
	State      string // two uppercase letters, e.g. "TX"
	ZoneCode   string // e.g. "TXZ001"
	CountyCode string // e.g. "TXC005", empty when no county is configured
	FeedID     string // query value: zone code, or "zone,county"
}

// New validates state, zone and county input and builds the feed identifier.
// State is uppercased before validation.
func New(state, zoneInput, countyInput string) (Identifier, error) {
	state = strings.ToUpper(strings.TrimSpace(state))

	zoneCode, err := ZoneCode(state, zoneInput)
	if err != nil {
		return Identifier{}, err
	}
	countyCode, err := CountyCode(state, countyInput)
	if err != nil {
		return Identifier{}, err
	}

	return Identifier{
		State:      state,
		ZoneCode:   zoneCode,
		CountyCode: countyCode,
		FeedID:     FeedID(zoneCode, countyCode),
	}, nil
}

// ZoneCode returns "{state}Z{zone}" with the zone number zero-padded to three
// digits. Input longer than three digits is rejected, not truncated.
func ZoneCode(state, zoneInput string) (string, error) {
	if !validState(state) {
		return "", fmt.Errorf("%w: configured state %q is not valid", ErrInvalidState, state)
	}
	zone, ok := pad(zoneInput)
	if !ok {
		return "", fmt.Errorf("%w: configured zone ID %q is not valid", ErrInvalidZone, zoneInput)
	}
	return state + "Z" + zone, nil
}

// CountyCode returns "{state}C{county}", or an empty string when no county is
// configured. An empty county is a distinct configuration, not an error.
func CountyCode(state, countyInput string) (string, error) {
	if strings.TrimSpace(countyInput) == "" {
		return "", nil
	}
	if !validState(state) {
		return "", fmt.Errorf("%w: configured state %q is not valid", ErrInvalidState, state)
	}
	county, ok := pad(countyInput)
	if !ok {
		return "", fmt.Errorf("%w: configured county ID %q is not valid", ErrInvalidCounty, countyInput)
	}
	return state + "C" + county, nil
}

// FeedID joins the zone and optional county codes into the query value.
func FeedID(zoneCode, countyCode string) string {
	if countyCode == "" {
		return zoneCode
	}
	return zoneCode + "," + countyCode
}

func validState(state string) bool {
	if len(state) != 2 {
		return false
	}
	for _, r := range state {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// pad left-pads a decimal number to three digits.
func pad(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" || len(input) > codeLength {
		return "", false
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return strings.Repeat("0", codeLength-len(input)) + input, true
}
