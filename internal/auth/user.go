// Package auth signs users in through an identity provider and keeps them
// signed in with a signed session cookie.
package auth

import "context"

// User is the signed-in identity. ID is the stable owner key for records.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// DisplayName falls back to the email when the provider gave no name.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type userKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the user stored by the session middleware.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}

// OwnerID is the owner key of the signed-in user, or "".
func OwnerID(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return u.ID
}
