package domain

import (
	"fmt"
	"strings"
)

// Role is the side of the roaming relationship an endpoint serves.
type Role string

const (
	RoleCPO  Role = "CPO"
	RoleEMSP Role = "EMSP"
)

// ParseRole parses a role case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RoleCPO):
		return RoleCPO, nil
	case string(RoleEMSP):
		return RoleEMSP, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Segment returns the lower-case URL path form of the role.
func (r Role) Segment() string {
	return strings.ToLower(string(r))
}

// PartnerToken is the credential one external partner uses to call one tenant.
// Only the hash of the credential is kept.
type PartnerToken struct {
	ID          string `json:"id" bson:"_id"`
	TenantID    string `json:"tenant_id" bson:"tenant_id"`
	Role        Role   `json:"role" bson:"role"`
	LocalID     string `json:"local_id" bson:"local_id"`
	CountryCode string `json:"country_code" bson:"country_code"`
	PartyID     string `json:"party_id" bson:"party_id"`
	TokenHash   string `json:"-" bson:"token_hash"`

	// PartnerCredential is the token the gateway presents when it calls back
	// into the partner's own platform.
	PartnerCredential string `json:"-" bson:"partner_credential"`
	PartnerURL        string `json:"partner_url,omitempty" bson:"partner_url,omitempty"`
}

// Claims are carried inside the encoded credential.
type Claims struct {
	Tenant string `json:"tid"`
	Nonce  string `json:"nonce,omitempty"`
}
