package models

import "github.com/golang-jwt/jwt/v5"

// Claims - поля JWT, выпускаемого сервисом аутентификации.
type Claims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Principal - аутентифицированный пользователь, от имени которого выполняется запрос.
type Principal struct {
	ID    uint64
	Admin bool
}

// PrincipalFromClaims строит Principal из проверенных claims.
func PrincipalFromClaims(c *Claims) Principal {
	return Principal{ID: c.UserID, Admin: HasRole(c.Roles, RoleAdmin)}
}

const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// HasRole проверяет, есть ли у пользователя указанная роль.
func HasRole(userRoles []string, targetRole string) bool {
	for _, role := range userRoles {
		if role == targetRole {
			return true
		}
	}
	return false
}
