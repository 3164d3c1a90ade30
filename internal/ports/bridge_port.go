package ports

import (
	"context"
	"hue-rest-client/internal/domain/model"
)

// BridgePort is the REST surface of one paired (or pairing) bridge.
type BridgePort interface {
	Register(ctx context.Context) (model.Credentials, error)
	ListEntertainmentGroups(ctx context.Context) ([]model.EntertainmentArea, error)
	ActivateStream(ctx context.Context, groupID int) error
	DeactivateStream(ctx context.Context, groupID int) error
	ListWhitelist(ctx context.Context) ([]model.WhitelistEntry, error)
	DeleteUser(ctx context.Context, username string) error

	Credentials() model.Credentials
}
