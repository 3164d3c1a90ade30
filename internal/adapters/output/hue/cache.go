package hue

import "hue-rest-client/internal/domain/model"

// CachedEntertainmentAreas returns a copy of the areas from the most recent
// successful ListEntertainmentGroups.
func (c *Client) CachedEntertainmentAreas() []model.EntertainmentArea {
	return cloneAreas(c.areas)
}

// CachedWhitelist returns a copy of the entries from the most recent
// successful ListWhitelist.
func (c *Client) CachedWhitelist() []model.WhitelistEntry {
	return cloneWhitelist(c.whitelist)
}

func cloneAreas(in []model.EntertainmentArea) []model.EntertainmentArea {
	if in == nil {
		return nil
	}
	out := make([]model.EntertainmentArea, len(in))
	for i, a := range in {
		out[i] = a
		out[i].LightIDs = make([]uint16, len(a.LightIDs))
		copy(out[i].LightIDs, a.LightIDs)
	}
	return out
}

func cloneWhitelist(in []model.WhitelistEntry) []model.WhitelistEntry {
	if in == nil {
		return nil
	}
	out := make([]model.WhitelistEntry, len(in))
	copy(out, in)
	return out
}
