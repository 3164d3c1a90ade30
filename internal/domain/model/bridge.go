package model

const (
	// AreaNameLen bounds an entertainment area name, terminator included.
	AreaNameLen = 33
	// MaxLightsPerArea is the number of light ids kept per area.
	MaxLightsPerArea = 10

	AppNameSize    = 21
	DeviceNameSize = 20
)

// EntertainmentArea is a bridge configured streaming zone.
type EntertainmentArea struct {
	ID       uint16
	Name     string
	LightIDs []uint16
}

// WhitelistEntry is an application registered on the bridge.
type WhitelistEntry struct {
	Username    string
	Name        string
	CreateDate  string
	LastUseDate string
}

// Credentials are issued by the bridge on registration.
type Credentials struct {
	Username  string
	ClientKey string // PSK for the DTLS stream
}
