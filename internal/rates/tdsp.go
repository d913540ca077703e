package rates

import "strings"

// TDSPRate pairs a delivery utility with its current residential charges.
type TDSPRate struct {
	Key     string
	Name    string
	Charges TDSPCharges
}

// tdspRates holds the residential delivery charges for the five competitive
// Texas TDSPs. Values are the PUCT-approved tariffs and are refreshed when
// the utilities file new delivery rates (typically March and September).
var tdspRates = []TDSPRate{
	{Key: "oncor", Name: "Oncor Electric Delivery", Charges: TDSPCharges{MonthlyCents: 423, CentsPerKWh: 4.8862}},
	{Key: "centerpoint", Name: "CenterPoint Energy", Charges: TDSPCharges{MonthlyCents: 439, CentsPerKWh: 4.9246}},
	{Key: "aep_central", Name: "AEP Texas Central", Charges: TDSPCharges{MonthlyCents: 588, CentsPerKWh: 5.0737}},
	{Key: "aep_north", Name: "AEP Texas North", Charges: TDSPCharges{MonthlyCents: 588, CentsPerKWh: 4.9848}},
	{Key: "tnmp", Name: "Texas-New Mexico Power", Charges: TDSPCharges{MonthlyCents: 785, CentsPerKWh: 5.5816}},
}

// TDSPs returns the known delivery utilities.
func TDSPs() []TDSPRate {
	out := make([]TDSPRate, len(tdspRates))
	copy(out, tdspRates)
	return out
}

// LookupTDSP resolves a delivery utility by key or by a fragment of its
// name ("Oncor", "CenterPoint Energy Houston Electric", "aep texas north").
func LookupTDSP(name string) (TDSPRate, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return TDSPRate{}, false
	}
	n = strings.ReplaceAll(n, "-", " ")
	for _, r := range tdspRates {
		if n == r.Key {
			return r, true
		}
	}
	for _, r := range tdspRates {
		if strings.Contains(n, strings.Split(r.Key, "_")[0]) {
			// Disambiguate the two AEP service territories.
			if strings.HasPrefix(r.Key, "aep_") {
				if strings.Contains(n, "north") != strings.Contains(r.Key, "north") {
					continue
				}
			}
			return r, true
		}
	}
	if strings.Contains(n, "texas new mexico") || strings.Contains(n, "tnmp") {
		return tdspRates[4], true
	}
	return TDSPRate{}, false
}
