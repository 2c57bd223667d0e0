package wgapi

import "time"

// Endpoint addresses one gateway with one set of Basic credentials.
type Endpoint struct {
	BaseURL string
	Login   string
	Secret  string
}

// User is a gateway account.
type User struct {
	Identifier     string `json:"Identifier"`
	Email          string `json:"Email"`
	Source         string `json:"Source,omitempty"`
	ProviderName   string `json:"ProviderName,omitempty"`
	IsAdmin        bool   `json:"IsAdmin"`
	Firstname      string `json:"Firstname"`
	Lastname       string `json:"Lastname"`
	Phone          string `json:"Phone"`
	Department     string `json:"Department"`
	Notes          string `json:"Notes"`
	Password       string `json:"Password,omitempty"`
	Disabled       bool   `json:"Disabled"`
	DisabledReason string `json:"DisabledReason"`
	Locked         bool   `json:"Locked"`
	LockedReason   string `json:"LockedReason"`
	ApiToken       string `json:"ApiToken,omitempty"`
	ApiEnabled     bool   `json:"ApiEnabled,omitempty"`
	PeerCount      int    `json:"PeerCount,omitempty"`
}

// Interface is a gateway-side WireGuard adapter.
type Interface struct {
	Identifier                 string   `json:"Identifier"`
	DisplayName                string   `json:"DisplayName"`
	Mode                       string   `json:"Mode,omitempty"`
	PrivateKey                 string   `json:"PrivateKey,omitempty"`
	PublicKey                  string   `json:"PublicKey,omitempty"`
	Disabled                   bool     `json:"Disabled"`
	DisabledReason             string   `json:"DisabledReason,omitempty"`
	SaveConfig                 bool     `json:"SaveConfig"`
	ListenPort                 int      `json:"ListenPort"`
	Addresses                  []string `json:"Addresses"`
	Dns                        []string `json:"Dns,omitempty"`
	DnsSearch                  []string `json:"DnsSearch,omitempty"`
	Mtu                        int      `json:"Mtu,omitempty"`
	FirewallMark               uint32   `json:"FirewallMark,omitempty"`
	RoutingTable               string   `json:"RoutingTable,omitempty"`
	PreUp                      string   `json:"PreUp,omitempty"`
	PostUp                     string   `json:"PostUp,omitempty"`
	PreDown                    string   `json:"PreDown,omitempty"`
	PostDown                   string   `json:"PostDown,omitempty"`
	PeerDefNetwork             []string `json:"PeerDefNetwork,omitempty"`
	PeerDefDns                 []string `json:"PeerDefDns,omitempty"`
	PeerDefEndpoint            string   `json:"PeerDefEndpoint,omitempty"`
	PeerDefAllowedIPs          []string `json:"PeerDefAllowedIPs,omitempty"`
	PeerDefMtu                 int      `json:"PeerDefMtu,omitempty"`
	PeerDefPersistentKeepalive int      `json:"PeerDefPersistentKeepalive,omitempty"`
	EnabledPeers               int      `json:"EnabledPeers,omitempty"`
	TotalPeers                 int      `json:"TotalPeers,omitempty"`
}

// Peer is one VPN client connection.
type Peer struct {
	Identifier          string     `json:"Identifier"`
	DisplayName         string     `json:"DisplayName"`
	UserIdentifier      string     `json:"UserIdentifier"`
	InterfaceIdentifier string     `json:"InterfaceIdentifier"`
	Mode                string     `json:"Mode,omitempty"`
	PublicKey           string     `json:"PublicKey,omitempty"`
	Addresses           []string   `json:"Addresses,omitempty"`
	Disabled            bool       `json:"Disabled"`
	DisabledReason      string     `json:"DisabledReason,omitempty"`
	ExpiresAt           *time.Time `json:"ExpiresAt,omitempty"`
	Notes               string     `json:"Notes,omitempty"`
}

// PeerSummary is the provisioning view of a peer.
type PeerSummary struct {
	Identifier          string `json:"Identifier"`
	DisplayName         string `json:"DisplayName"`
	IsDisabled          bool   `json:"IsDisabled"`
	InterfaceIdentifier string `json:"InterfaceIdentifier"`
}

// UserPeerInfo lists the peers of one gateway user.
type UserPeerInfo struct {
	UserIdentifier string        `json:"UserIdentifier"`
	PeerCount      int           `json:"PeerCount"`
	Peers          []PeerSummary `json:"Peers"`
}

// NewPeerRequest asks the gateway to allocate a peer on an interface.
type NewPeerRequest struct {
	InterfaceIdentifier string `json:"InterfaceIdentifier"`
	UserIdentifier      string `json:"UserIdentifier"`
}

// InterfaceMetrics are traffic counters of an interface.
type InterfaceMetrics struct {
	InterfaceIdentifier string `json:"InterfaceIdentifier"`
	BytesReceived       uint64 `json:"BytesReceived"`
	BytesTransmitted    uint64 `json:"BytesTransmitted"`
}

// PeerMetrics are traffic and handshake data of a peer.
type PeerMetrics struct {
	PeerIdentifier   string     `json:"PeerIdentifier"`
	IsPingable       bool       `json:"IsPingable"`
	LastPing         *time.Time `json:"LastPing,omitempty"`
	BytesReceived    uint64     `json:"BytesReceived"`
	BytesTransmitted uint64     `json:"BytesTransmitted"`
	LastHandshake    *time.Time `json:"LastHandshake,omitempty"`
	Endpoint         string     `json:"Endpoint,omitempty"`
	LastSessionStart *time.Time `json:"LastSessionStart,omitempty"`
}

// UserMetrics aggregate the peers of one user.
type UserMetrics struct {
	UserIdentifier   string        `json:"UserIdentifier"`
	PeerCount        int           `json:"PeerCount"`
	BytesReceived    uint64        `json:"BytesReceived"`
	BytesTransmitted uint64        `json:"BytesTransmitted"`
	PeerMetrics      []PeerMetrics `json:"PeerMetrics"`
}
