package domain

import (
	"encoding/json"
	"fmt"
)

// WaterReport is the WaterML-JSON 1.1 document returned by the USGS
// Instantaneous Values service. Only the fields the extractor reads are
// modeled.
type WaterReport struct {
	Value struct {
		TimeSeries []TimeSeries `json:"timeSeries"`
	} `json:"value"`
}

// TimeSeries is one station's readings for one measured variable.
type TimeSeries struct {
	SourceInfo SourceInfo  `json:"sourceInfo"`
	Variable   Variable    `json:"variable"`
	Values     []ValueList `json:"values"`
	Name       string      `json:"name,omitempty"`
}

// SiteCode returns the first site code of the series, or "" if absent.
func (ts TimeSeries) SiteCode() string {
	if len(ts.SourceInfo.SiteCode) == 0 {
		return ""
	}
	return ts.SourceInfo.SiteCode[0].Value
}

// Samples returns the first value list of the series.
func (ts TimeSeries) Samples() []Sample {
	if len(ts.Values) == 0 {
		return nil
	}
	return ts.Values[0].Value
}

type SourceInfo struct {
	SiteName string         `json:"siteName,omitempty"`
	SiteCode []SiteCodeInfo `json:"siteCode"`
}

type SiteCodeInfo struct {
	Value      string `json:"value"`
	Network    string `json:"network,omitempty"`
	AgencyCode string `json:"agencyCode,omitempty"`
}

type Variable struct {
	Unit        Unit     `json:"unit"`
	NoDataValue *float64 `json:"noDataValue,omitempty"`
}

type Unit struct {
	UnitCode string `json:"unitCode"`
}

type ValueList struct {
	Value []Sample `json:"value"`
}

// Sample is a single raw reading.
type Sample struct {
	Value      string   `json:"value"`
	DateTime   string   `json:"dateTime"`
	Qualifiers []string `json:"qualifiers,omitempty"`
}

// ParseWaterReport decodes a WaterML-JSON report.
func ParseWaterReport(data []byte) (WaterReport, error) {
	var report WaterReport
	if err := json.Unmarshal(data, &report); err != nil {
		return WaterReport{}, &ParseError{Source: "water report", Err: err}
	}
	return report, nil
}

// ParseRivers decodes a directory listing.
func ParseRivers(data []byte) ([]River, error) {
	var rivers []River
	if err := json.Unmarshal(data, &rivers); err != nil {
		return nil, &ParseError{Source: "river listing", Err: err}
	}
	return rivers, nil
}

// ParseRiver decodes a single directory entry.
func ParseRiver(data []byte) (River, error) {
	var r River
	if err := json.Unmarshal(data, &r); err != nil {
		return River{}, &ParseError{Source: "river", Err: err}
	}
	return r, nil
}

// ValidateRiver reports why a river cannot take part in a sync, or nil.
func ValidateRiver(r River) error {
	switch {
	case r.ID == "":
		return &ParseError{Source: "river", Err: fmt.Errorf("missing id")}
	case r.SiteCode == "":
		return &ParseError{Source: "river " + r.ID, Err: fmt.Errorf("missing siteCode")}
	case r.StateAbbr == "":
		return &ParseError{Source: "river " + r.ID, Err: fmt.Errorf("missing stateAbbr")}
	}
	return nil
}
