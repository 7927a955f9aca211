// Package model содержит доменные сущности сервиса заказов кафе.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gender описывает пол участника.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// MemberStatus описывает статус участника.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusWithdrawn MemberStatus = "WITHDRAWN"
)

// Member представляет зарегистрированного участника кафе.
// Инвариант: WithdrawalTime установлен тогда и только тогда,
// когда Status == WITHDRAWN.
type Member struct {
	ID             int64
	Name           string
	PhoneNumber    string
	Gender         Gender
	BirthDate      time.Time
	Status         MemberStatus
	WithdrawalTime *time.Time
	JoinTime       time.Time
}

// NewMember создаёт нового участника в статусе ACTIVE.
func NewMember(name, phoneNumber string, gender Gender, birthDate, now time.Time) *Member {
	return &Member{
		Name:        name,
		PhoneNumber: phoneNumber,
		Gender:      gender,
		BirthDate:   birthDate,
		Status:      MemberStatusActive,
		JoinTime:    now,
	}
}

// Withdraw переводит участника в статус WITHDRAWN и фиксирует время выхода.
func (m *Member) Withdraw(now time.Time) {
	m.Status = MemberStatusWithdrawn
	m.WithdrawalTime = &now
}

// CancelWithdrawal возвращает участника в статус ACTIVE и сбрасывает время выхода.
func (m *Member) CancelWithdrawal() {
	m.Status = MemberStatusActive
	m.WithdrawalTime = nil
}

// IsActive сообщает, является ли участник действующим.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// IsWithdrawn сообщает, вышел ли участник из членства.
func (m *Member) IsWithdrawn() bool {
	return m.Status == MemberStatusWithdrawn
}

// Product представляет товар каталога. Справочные данные, не изменяются заказами.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// OrderLine представляет позицию заказа: товар и положительное количество.
// Позиция принадлежит исключительно своему заказу.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order представляет заказ участника.
// Инварианты: PaymentID всегда непустой (заказ создаётся только после успешной
// оплаты); CancelTime установлен тогда и только тогда, когда Status == CANCELLED.
type Order struct {
	ID         int64
	MemberID   int64
	Lines      []OrderLine
	Status     OrderStatus
	PaymentID  string
	OrderTime  time.Time
	CancelTime *time.Time
}

// NewOrder создаёт подтверждённый заказ со ссылкой на успешный платёж.
func NewOrder(memberID int64, lines []OrderLine, paymentID string, now time.Time) *Order {
	return &Order{
		MemberID:  memberID,
		Lines:     lines,
		Status:    OrderStatusConfirmed,
		PaymentID: paymentID,
		OrderTime: now,
	}
}

// Cancel переводит заказ в статус CANCELLED и фиксирует время отмены.
func (o *Order) Cancel(now time.Time) {
	o.Status = OrderStatusCancelled
	o.CancelTime = &now
}

// IsCancelled сообщает, отменён ли заказ.
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// IsConfirmed сообщает, является ли заказ подтверждённым.
func (o *Order) IsConfirmed() bool {
	return o.Status == OrderStatusConfirmed
}

// Payment представляет запись о платеже во внешней платёжной системе.
// После создания запись не изменяется; OrderID заполняется, когда заказ сохранён.
type Payment struct {
	ID          int64
	PaymentID   string
	OrderID     *int64
	PaymentTime time.Time
}
