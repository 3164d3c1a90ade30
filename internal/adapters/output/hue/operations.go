package hue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/amimof/huego"

	"hue-rest-client/internal/domain/model"
	xlog "hue-rest-client/internal/log"
)

const entertainmentGroupType = "Entertainment"

type registerRequest struct {
	DeviceType        string `json:"devicetype"`
	GenerateClientKey bool   `json:"generateclientkey"`
}

type registerResult struct {
	Username  string `json:"username"`
	ClientKey string `json:"clientkey"`
}

type streamRequest struct {
	Stream struct {
		Active bool `json:"active"`
	} `json:"stream"`
}

type whitelistRecord struct {
	Name        string `json:"name"`
	CreateDate  string `json:"create date"`
	LastUseDate string `json:"last use date"`
}

// Register pairs the application with the bridge. The link button must have
// been pressed within the last 30 seconds, otherwise the bridge refuses with
// model.ErrLinkButtonNotPushed. Stored credentials only change on success.
func (c *Client) Register(ctx context.Context) (model.Credentials, error) {
	if err := c.acquire(); err != nil {
		return model.Credentials{}, err
	}
	defer c.release()

	o := c.execute(ctx, http.MethodPost, "/api", registerRequest{
		DeviceType:        c.deviceType,
		GenerateClientKey: true,
	})
	if o.kind != outcomeSuccess {
		return model.Credentials{}, o.err("register")
	}

	res, err := decodeRegistration(o.payload)
	if err != nil {
		return model.Credentials{}, &TransportError{Op: "register", Status: o.status, Err: err}
	}
	c.username = res.Username
	c.clientKey = res.ClientKey
	c.log.Info().Bool("clientkey", res.ClientKey != "").Msg("application registered")
	return c.Credentials(), nil
}

// decodeRegistration accepts the usual [{"success":{...}}] reply as well as a
// bare {"username":...} object.
func decodeRegistration(payload json.RawMessage) (registerResult, error) {
	var res registerResult
	if len(payload) > 0 && payload[0] == '[' {
		var items []struct {
			Success *registerResult `json:"success"`
		}
		if err := json.Unmarshal(payload, &items); err != nil {
			return res, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		for _, it := range items {
			if it.Success != nil {
				res = *it.Success
				break
			}
		}
	} else if err := json.Unmarshal(payload, &res); err != nil {
		return res, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if res.Username == "" {
		return res, fmt.Errorf("%w: registration reply carries no username", ErrProtocol)
	}
	return res, nil
}

// ListEntertainmentGroups fetches the entertainment areas configured on the
// bridge. The result replaces the cached listing; the returned slice is a
// copy owned by the caller.
func (c *Client) ListEntertainmentGroups(ctx context.Context) ([]model.EntertainmentArea, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()
	if c.username == "" {
		return nil, ErrNotRegistered
	}

	o := c.execute(ctx, http.MethodGet, c.userPath("groups"), nil)
	if o.kind != outcomeSuccess {
		return nil, o.err("list entertainment groups")
	}

	areas, err := decodeAreas(o.payload)
	if err != nil {
		return nil, &TransportError{Op: "list entertainment groups", Status: o.status, Err: err}
	}
	c.areas = areas
	c.log.Debug().Int(xlog.FieldCount, len(areas)).Msg("entertainment areas listed")
	return cloneAreas(areas), nil
}

func decodeAreas(payload json.RawMessage) ([]model.EntertainmentArea, error) {
	var groups map[string]huego.Group
	if err := json.Unmarshal(payload, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	areas := make([]model.EntertainmentArea, 0, len(groups))
	for key, g := range groups {
		if g.Type != entertainmentGroupType {
			continue
		}
		id, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: group id %q", ErrProtocol, key)
		}
		area := model.EntertainmentArea{
			ID:       uint16(id),
			Name:     truncate(g.Name, model.AreaNameLen-1),
			LightIDs: make([]uint16, 0, min(len(g.Lights), model.MaxLightsPerArea)),
		}
		for _, l := range g.Lights {
			if len(area.LightIDs) == model.MaxLightsPerArea {
				break
			}
			lid, err := strconv.ParseUint(l, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: light id %q in group %s", ErrProtocol, l, key)
			}
			area.LightIDs = append(area.LightIDs, uint16(lid))
		}
		areas = append(areas, area)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas, nil
}

// ActivateStream enables streaming for an entertainment group. On success the
// bridge expects the DTLS connection, keyed with the client key, within 10
// seconds and otherwise reverts the group to inactive on its own.
func (c *Client) ActivateStream(ctx context.Context, groupID int) error {
	return c.setStream(ctx, groupID, true)
}

// DeactivateStream ends streaming for an entertainment group.
func (c *Client) DeactivateStream(ctx context.Context, groupID int) error {
	return c.setStream(ctx, groupID, false)
}

func (c *Client) setStream(ctx context.Context, groupID int, active bool) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if c.username == "" {
		return ErrNotRegistered
	}
	if groupID < 0 {
		return fmt.Errorf("%w: group id %d", ErrInvalidRequest, groupID)
	}

	var body streamRequest
	body.Stream.Active = active
	o := c.execute(ctx, http.MethodPut, c.userPath("groups", strconv.Itoa(groupID)), body)
	if o.kind != outcomeSuccess {
		op := "activate stream"
		if !active {
			op = "deactivate stream"
		}
		return o.err(op)
	}
	c.log.Info().Int(xlog.FieldGroupID, groupID).Bool("active", active).Msg("stream state changed")
	return nil
}

// ListWhitelist fetches the applications registered on the bridge. The result
// replaces the cached whitelist; the returned slice is a copy owned by the
// caller.
func (c *Client) ListWhitelist(ctx context.Context) ([]model.WhitelistEntry, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()
	if c.username == "" {
		return nil, ErrNotRegistered
	}

	o := c.execute(ctx, http.MethodGet, c.userPath("config"), nil)
	if o.kind != outcomeSuccess {
		return nil, o.err("list whitelist")
	}

	entries, err := decodeWhitelist(o.payload)
	if err != nil {
		return nil, &TransportError{Op: "list whitelist", Status: o.status, Err: err}
	}
	c.whitelist = entries
	c.log.Debug().Int(xlog.FieldCount, len(entries)).Msg("whitelist listed")
	return cloneWhitelist(entries), nil
}

func decodeWhitelist(payload json.RawMessage) ([]model.WhitelistEntry, error) {
	var cfg struct {
		Whitelist *map[string]whitelistRecord `json:"whitelist"`
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	// Bridges answer unknown users with the public config, which has no whitelist.
	if cfg.Whitelist == nil {
		return nil, fmt.Errorf("%w: config carries no whitelist", ErrProtocol)
	}

	entries := make([]model.WhitelistEntry, 0, len(*cfg.Whitelist))
	for username, rec := range *cfg.Whitelist {
		entries = append(entries, model.WhitelistEntry{
			Username:    username,
			Name:        rec.Name,
			CreateDate:  rec.CreateDate,
			LastUseDate: rec.LastUseDate,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Username < entries[j].Username })
	return entries, nil
}

// DeleteUser removes an application from the bridge whitelist. Whether the
// bridge permits it is bridge policy.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if c.username == "" {
		return ErrNotRegistered
	}
	if username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidRequest)
	}

	o := c.execute(ctx, http.MethodDelete, c.userPath("config", "whitelist", username), nil)
	if o.kind != outcomeSuccess {
		return o.err("delete user")
	}
	c.log.Info().Msg("whitelist entry deleted")
	return nil
}
