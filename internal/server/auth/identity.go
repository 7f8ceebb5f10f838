package auth

import (
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

type ClaimKind int

const (
	ClaimNone ClaimKind = iota
	ClaimByUsername
	ClaimByEmail
)

// ClaimedIdentity is who a request says it acts for. Emails are stored
// normalized.
type ClaimedIdentity struct {
	Kind  ClaimKind
	Value string
}

func ByUsername(username string) ClaimedIdentity {
	return ClaimedIdentity{Kind: ClaimByUsername, Value: strings.TrimSpace(username)}
}

func ByEmail(email string) ClaimedIdentity {
	return ClaimedIdentity{Kind: ClaimByEmail, Value: common.NormalizeEmail(email)}
}

// ClaimFromRequest builds the claim from loose request fields. Email wins
// when both are present because it is unique.
func ClaimFromRequest(username, email string) ClaimedIdentity {
	if strings.TrimSpace(email) != "" {
		return ByEmail(email)
	}
	if strings.TrimSpace(username) != "" {
		return ByUsername(username)
	}
	return ClaimedIdentity{}
}

func (c ClaimedIdentity) IsZero() bool {
	return c.Kind == ClaimNone || c.Value == ""
}

func (c ClaimedIdentity) String() string {
	switch c.Kind {
	case ClaimByEmail:
		return "email:" + c.Value
	case ClaimByUsername:
		return "username:" + c.Value
	}
	return "none"
}
