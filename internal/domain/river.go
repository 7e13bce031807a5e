package domain

import (
	"encoding/json"
	"slices"
	"sort"
	"time"
)

// River is a river as described by the directory service.
type River struct {
	ID        string `json:"id"`
	SiteCode  string `json:"siteCode"`
	StateAbbr string `json:"stateAbbr"`
	Name      string `json:"name,omitempty"`
}

// UnmarshalJSON accepts both "uuid" and "id" as the river identifier; the
// directory has served both, and "uuid" wins when both are present.
func (r *River) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        string `json:"id"`
		UUID      string `json:"uuid"`
		SiteCode  string `json:"siteCode"`
		StateAbbr string `json:"stateAbbr"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.ID = wire.ID
	if wire.UUID != "" {
		r.ID = wire.UUID
	}
	r.SiteCode = wire.SiteCode
	r.StateAbbr = wire.StateAbbr
	r.Name = wire.Name
	return nil
}

// Observation is a single hourly discharge reading for a river.
type Observation struct {
	RiverID   string
	Timestamp time.Time
	Value     string // fixed-point, two fractional digits
	Unit      string
}

// ObservationSet maps river IDs to their observations in source order.
type ObservationSet map[string][]Observation

// Merge copies every entry of other into s. Entries already present in s are
// replaced and their river IDs returned.
func (s ObservationSet) Merge(other ObservationSet) []string {
	var replaced []string
	for riverID, obs := range other {
		if _, ok := s[riverID]; ok {
			replaced = append(replaced, riverID)
		}
		s[riverID] = obs
	}
	sort.Strings(replaced)
	return replaced
}

// Count returns the total number of observations across all rivers.
func (s ObservationSet) Count() int {
	n := 0
	for _, obs := range s {
		n += len(obs)
	}
	return n
}

// RiverIDs returns the set's keys in sorted order.
func (s ObservationSet) RiverIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SiteIndex associates USGS site codes with river IDs in both directions.
type SiteIndex struct {
	riverBySite map[string]string
	siteByRiver map[string]string
}

// NewSiteIndex builds an index from rivers. A later river with the same site
// code replaces the earlier mapping.
func NewSiteIndex(rivers []River) SiteIndex {
	idx := SiteIndex{
		riverBySite: make(map[string]string, len(rivers)),
		siteByRiver: make(map[string]string, len(rivers)),
	}
	for _, r := range rivers {
		idx.riverBySite[r.SiteCode] = r.ID
		idx.siteByRiver[r.ID] = r.SiteCode
	}
	return idx
}

// RiverID returns the river mapped to siteCode.
func (i SiteIndex) RiverID(siteCode string) (string, bool) {
	id, ok := i.riverBySite[siteCode]
	return id, ok
}

// SiteCode returns the site code mapped to riverID.
func (i SiteIndex) SiteCode(riverID string) (string, bool) {
	code, ok := i.siteByRiver[riverID]
	return code, ok
}

// Len returns the number of mapped site codes.
func (i SiteIndex) Len() int { return len(i.riverBySite) }

// RegionGroup is the set of site codes fetched together for one region.
type RegionGroup struct {
	Region    string
	SiteCodes []string
}

// GroupByRegion partitions the rivers' site codes by state. Groups are sorted
// by region; site codes keep the order of first appearance and are unique
// within a group.
func GroupByRegion(rivers []River) []RegionGroup {
	byRegion := make(map[string][]string)
	for _, r := range rivers {
		codes := byRegion[r.StateAbbr]
		if slices.Contains(codes, r.SiteCode) {
			continue
		}
		byRegion[r.StateAbbr] = append(codes, r.SiteCode)
	}

	groups := make([]RegionGroup, 0, len(byRegion))
	for region, codes := range byRegion {
		groups = append(groups, RegionGroup{Region: region, SiteCodes: codes})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Region < groups[j].Region })
	return groups
}
