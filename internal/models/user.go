// Package models содержит доменные структуры биллинга: пользователя с балансом
// в полуднях, купоны, тарифные планы и счета, а также явные состояния
// и допустимые переходы между ними.
package models

import (
	"errors"
	"fmt"
)

// UserStatus описывает состояние доступа пользователя к сервису.
type UserStatus int

const (
	// StatusInactive пользователь зарегистрирован, но ничего не оплачивал.
	StatusInactive UserStatus = iota
	// StatusActivating оплата прошла, ожидается провижининг.
	StatusActivating
	// StatusActive провижининг завершён.
	StatusActive
)

// ErrIllegalTransition возвращается при попытке недопустимой смены состояния.
var ErrIllegalTransition = errors.New("illegal state transition")

func (s UserStatus) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActivating:
		return "ACTIVATING"
	case StatusActive:
		return "ACTIVE"
	default:
		return fmt.Sprintf("UserStatus(%d)", int(s))
	}
}

// Valid сообщает, является ли значение одним из известных статусов.
func (s UserStatus) Valid() bool {
	return s >= StatusInactive && s <= StatusActive
}

// BeginActivation переход после оплаты. Разрешён из любого известного
// состояния: продление активной подписки тоже требует повторного провижининга.
func (s UserStatus) BeginActivation() (UserStatus, error) {
	if !s.Valid() {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, StatusActivating)
	}
	return StatusActivating, nil
}

// CompleteActivation переход ACTIVATING -> ACTIVE, выполняемый воркером провижининга.
func (s UserStatus) CompleteActivation() (UserStatus, error) {
	if s != StatusActivating {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, StatusActive)
	}
	return StatusActive, nil
}

// User представляет владельца подписки.
// Баланс хранится только в полуднях; перевод в дни выполняет пакет balance.
type User struct {
	ID              int64      // Внутренний идентификатор
	Username        string     // Уникальный хэндл пользователя
	BalanceHalfdays int        // Остаток подписки в единицах по 0.5 дня
	Status          UserStatus // Состояние доступа
}

func (u *User) String() string {
	if u.Status == StatusActive {
		return fmt.Sprintf("User %s (active), balance %d halfdays", u.Username, u.BalanceHalfdays)
	}
	return fmt.Sprintf("User %s, balance %d halfdays", u.Username, u.BalanceHalfdays)
}
