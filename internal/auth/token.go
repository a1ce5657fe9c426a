package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("Invalid auth")

// Identity is the caller a valid token was issued to.
type Identity struct {
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Role  UserRole `json:"role"`
}

func (i Identity) HasClearance(r UserRole) bool { return i.Role <= r }

// Validator issues and checks HS256 bearer tokens. With no Secret, auth is
// disabled and every caller is an admin.
type Validator struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Users  []*User
}

func (v *Validator) Enabled() bool { return len(v.Secret) > 0 }

// Login checks a user's password and returns a signed token for them.
func (v *Validator) Login(name, password string) (string, error) {
	for _, u := range v.Users {
		if u.Name == name && u.ValidateUser(password) {
			return v.Issue(u)
		}
	}
	return "", ErrInvalidCredentials
}

func (v *Validator) Issue(u *User) (string, error) {
	if !v.Enabled() {
		return "", errors.New("authentication not configured")
	}
	ttl := v.TTL
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"jti":  uuid.New().String(),
		"sub":  u.Id,
		"name": u.Name,
		"role": u.Role.String(),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if len(v.Issuer) > 0 {
		claims["iss"] = v.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.Secret))
}

// Validate parses a token and extracts the caller's identity. Tokens with no
// role claim are read-only.
func (v *Validator) Validate(token_string string) (Identity, error) {
	if !v.Enabled() {
		return Identity{}, errors.New("authentication not configured")
	}

	token, err := jwt.Parse(token_string, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token claims")
	}

	if len(v.Issuer) > 0 {
		issuer, _ := claims.GetIssuer()
		if issuer != v.Issuer {
			return Identity{}, fmt.Errorf("invalid issuer: expected %s, got %s", v.Issuer, issuer)
		}
	}

	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	if len(name) == 0 && len(email) == 0 {
		return Identity{}, errors.New("token missing identity claims (name or email)")
	}

	role := UserRoleReadOnly
	if raw, ok := claims["role"].(string); ok {
		if role, err = ParseRole(raw); err != nil {
			return Identity{}, err
		}
	}

	return Identity{Name: name, Email: email, Role: role}, nil
}
