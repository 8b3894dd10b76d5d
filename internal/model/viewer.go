package model

import "strconv"

// Viewer is the identity a read or write is performed on behalf of.
// It has exactly two variants: Anonymous (the zero value) and Authenticated.
//
// Repositories take a Viewer explicitly instead of digging an identity out of
// the request context, so every call site states who it acts for.
type Viewer struct {
	userID   int64
	username string
	ok       bool
}

// Anonymous returns the unauthenticated viewer.
func Anonymous() Viewer { return Viewer{} }

// Authenticated returns a viewer for the given user.
func Authenticated(userID int64, username string) Viewer {
	return Viewer{userID: userID, username: username, ok: true}
}

// UserID returns the viewer's user id and whether the viewer is authenticated.
func (v Viewer) UserID() (int64, bool) { return v.userID, v.ok }

// Username is empty for anonymous viewers.
func (v Viewer) Username() string { return v.username }

// IsAnonymous reports whether no identity is attached.
func (v Viewer) IsAnonymous() bool { return !v.ok }

// NullableID returns the user id as an `any` suitable for a nullable SQL
// parameter: nil for anonymous viewers.
func (v Viewer) NullableID() any {
	if !v.ok {
		return nil
	}
	return v.userID
}

func (v Viewer) String() string {
	if !v.ok {
		return "anonymous"
	}
	return "user:" + strconv.FormatInt(v.userID, 10)
}
