// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity. It abstracts identity
// extraction from the web framework so handlers can pass actor information to
// services without depending on gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Name returns the user's display name for audit records.
	Name() string
	// FranchiseID returns the franchise the user belongs to.
	FranchiseID() uuid.UUID
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	name          string
	franchiseID   uuid.UUID
	authenticated bool
}

func (i *identity) UserID() uuid.UUID      { return i.userID }
func (i *identity) Name() string           { return i.name }
func (i *identity) FranchiseID() uuid.UUID { return i.franchiseID }
func (i *identity) IsAuthenticated() bool  { return i.authenticated }

// GetIdentity extracts the Identity from a gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	id := &identity{userID: uid, authenticated: true}

	if name, ok := c.Get(ContextUserNameKey); ok {
		id.name, _ = name.(string)
	}
	if franchiseID, ok := c.Get(ContextFranchiseIDKey); ok {
		id.franchiseID, _ = franchiseID.(uuid.UUID)
	}

	return id
}

// MustGetIdentity extracts the Identity from a gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return nil
	}
	return id
}
