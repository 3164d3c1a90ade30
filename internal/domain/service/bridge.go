package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hue-rest-client/internal/domain/model"
	xlog "hue-rest-client/internal/log"
	"hue-rest-client/internal/ports"
)

var (
	ErrAreaNotFound = errors.New("entertainment area not found")
	ErrRevokeSelf   = errors.New("refusing to revoke this application's own username")
)

// BridgeService drives one bridge on behalf of the application and keeps the
// stored configuration in step with the credentials the bridge issues.
// Calls are serialised so the underlying client never reports itself busy.
type BridgeService struct {
	bridge     ports.BridgePort
	configRepo ports.ConfigRepository
	log        zerolog.Logger
	mu         sync.Mutex
}

func NewBridgeService(bridge ports.BridgePort, configRepo ports.ConfigRepository) *BridgeService {
	return &BridgeService{
		bridge:     bridge,
		configRepo: configRepo,
		log:        xlog.WithComponent("service"),
	}
}

// Pair registers the application and persists the issued credentials.
func (s *BridgeService) Pair(ctx context.Context) (model.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.bridge.Register(ctx)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("pair: %w", err)
	}

	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		return creds, fmt.Errorf("pair: load config: %w", err)
	}
	cfg.SetCredentials(creds)
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return creds, fmt.Errorf("pair: save config: %w", err)
	}
	s.log.Info().Str(xlog.FieldUsername, xlog.Redact(creds.Username)).Msg("paired with bridge")
	return creds, nil
}

func (s *BridgeService) EntertainmentAreas(ctx context.Context) ([]model.EntertainmentArea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.ListEntertainmentGroups(ctx)
}

// StartStream activates streaming for the area whose id or name matches ref.
// Names compare case-insensitively against a fresh listing.
func (s *BridgeService) StartStream(ctx context.Context, ref string) (model.EntertainmentArea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.bridge.ListEntertainmentGroups(ctx)
	if err != nil {
		return model.EntertainmentArea{}, err
	}
	area, ok := findArea(areas, ref)
	if !ok {
		return model.EntertainmentArea{}, fmt.Errorf("%w: %q", ErrAreaNotFound, ref)
	}
	if err := s.bridge.ActivateStream(ctx, int(area.ID)); err != nil {
		return area, err
	}
	s.log.Info().Uint16(xlog.FieldGroupID, area.ID).Str("area", area.Name).Msg("stream activated")
	return area, nil
}

func findArea(areas []model.EntertainmentArea, ref string) (model.EntertainmentArea, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseUint(ref, 10, 16); err == nil {
		for _, a := range areas {
			if a.ID == uint16(id) {
				return a, true
			}
		}
	}
	for _, a := range areas {
		if strings.EqualFold(a.Name, ref) {
			return a, true
		}
	}
	return model.EntertainmentArea{}, false
}

func (s *BridgeService) StopStream(ctx context.Context, groupID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.DeactivateStream(ctx, groupID)
}

// Applications lists the whitelist of the bridge.
func (s *BridgeService) Applications(ctx context.Context) ([]model.WhitelistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.ListWhitelist(ctx)
}

// RevokeApplication removes another application from the whitelist.
func (s *BridgeService) RevokeApplication(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if username != "" && username == s.bridge.Credentials().Username {
		return ErrRevokeSelf
	}
	if err := s.bridge.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.log.Info().Str(xlog.FieldUsername, xlog.Redact(username)).Msg("application revoked")
	return nil
}
