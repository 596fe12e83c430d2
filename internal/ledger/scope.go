package ledger

import (
	"fmt"

	"github.com/fkhayef/splitledger/internal/feed"
)

// ScopeKind says which slice of the ledger a balance is computed over.
type ScopeKind string

const (
	ScopeGroup  ScopeKind = "group"
	ScopeFriend ScopeKind = "friend"
	ScopeGlobal ScopeKind = "global"
)

// Scope is one viewer's window onto the ledger. It is comparable and used
// directly as a cache key.
type Scope struct {
	Kind     ScopeKind
	ViewerID int64
	GroupID  int64
	FriendID int64
}

// GroupScope covers every expense and settlement recorded in one group.
func GroupScope(viewerID, groupID int64) Scope {
	return Scope{Kind: ScopeGroup, ViewerID: viewerID, GroupID: groupID}
}

// FriendScope covers everything between two users, in any group or none.
func FriendScope(viewerID, friendID int64) Scope {
	return Scope{Kind: ScopeFriend, ViewerID: viewerID, FriendID: friendID}
}

// GlobalScope covers everything the viewer takes part in.
func GlobalScope(viewerID int64) Scope {
	return Scope{Kind: ScopeGlobal, ViewerID: viewerID}
}

// Key renders the scope for logs.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeGroup:
		return fmt.Sprintf("group:%d:viewer:%d", s.GroupID, s.ViewerID)
	case ScopeFriend:
		return fmt.Sprintf("friend:%d:viewer:%d", s.FriendID, s.ViewerID)
	default:
		return fmt.Sprintf("global:viewer:%d", s.ViewerID)
	}
}

// AffectedBy reports whether inv may have changed this scope's balances.
func (s Scope) AffectedBy(inv feed.Invalidation) bool {
	switch s.Kind {
	case ScopeGroup:
		return inv.TouchesGroup(s.GroupID)
	case ScopeFriend:
		return inv.TouchesPair(s.ViewerID, s.FriendID)
	case ScopeGlobal:
		return inv.TouchesUser(s.ViewerID)
	default:
		return true
	}
}
