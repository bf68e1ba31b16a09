package session

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserProfile is the user record issued by the backend on login. Fields the
// client does not know about are kept in Extra and written back unchanged.
type UserProfile struct {
	ID       int64
	Username string
	IsStaff  bool
	Extra    map[string]any
}

type userProfileJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}

var knownUserFields = []string{"id", "username", "is_staff"}

func (u UserProfile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+len(knownUserFields))
	for k, v := range u.Extra {
		out[k] = v
	}
	out["id"] = u.ID
	out["username"] = u.Username
	out["is_staff"] = u.IsStaff
	return json.Marshal(out)
}

func (u *UserProfile) UnmarshalJSON(b []byte) error {
	var known userProfileJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range knownUserFields {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}
	*u = UserProfile{ID: known.ID, Username: known.Username, IsStaff: known.IsStaff, Extra: all}
	return nil
}

// Credential is the persisted proof of authentication.
type Credential struct {
	Token string
	User  UserProfile
}

// ExpiresAt reads the exp claim when Token is a JWT. The signature is not
// checked; the backend does that. Opaque tokens report ok=false.
func (c Credential) ExpiresAt() (t time.Time, ok bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token carries an exp claim that is not after now.
func (c Credential) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	return ok && !now.Before(exp)
}

// Dataset is the "latest uploaded dataset" pointer a browsing context
// searches against.
type Dataset struct {
	ID   int64  `json:"latest_file_id"`
	Name string `json:"latest_file_name"`
}

func isJSONNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
