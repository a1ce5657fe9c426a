package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserRole int

const (
	UserRoleAdmin UserRole = iota
	UserRoleReadWrite
	UserRoleReadOnly
)

var role_names = map[string]UserRole{
	"admin":     UserRoleAdmin,
	"readwrite": UserRoleReadWrite,
	"readonly":  UserRoleReadOnly,
}

func ParseRole(name string) (UserRole, error) {
	r, ok := role_names[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("Invalid role: %s", name)
	}
	return r, nil
}

func (r UserRole) String() string {
	for name, role := range role_names {
		if role == r {
			return name
		}
	}
	return "unknown"
}

type User struct {
	Id       string
	Name     string
	Password []byte
	Role     UserRole
}

func NewUser(name, password string, role UserRole) (*User, error) {
	// bcrypt only looks at the first 72 bytes
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{uuid.New().String(), name, hashed, role}, nil
}

// ParseUser reads a user from name:password[:role]. The role defaults to readonly.
func ParseUser(entry string) (*User, error) {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return nil, fmt.Errorf("Invalid user %q: expected name:password[:role]", parts[0])
	}
	role := UserRoleReadOnly
	if len(parts) == 3 {
		var err error
		if role, err = ParseRole(parts[2]); err != nil {
			return nil, err
		}
	}
	return NewUser(parts[0], parts[1], role)
}

func (u *User) ValidateUser(password string) bool {
	return bcrypt.CompareHashAndPassword(u.Password, []byte(password)) == nil
}

// HasClearance reports whether u may act with role r.
func (u *User) HasClearance(r UserRole) bool { return u.Role <= r }
