package domain

import "time"

// User — зарегистрированный пользователь. IsStaff даёт право изменять любые товары.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}

func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
}

// Caller — аутентифицированный инициатор запроса. Анонимный запрос представлен nil.
type Caller struct {
	UserID  int64
	IsStaff bool
}

func NewCaller(user *User) *Caller {
	return &Caller{UserID: user.ID, IsStaff: user.IsStaff}
}
