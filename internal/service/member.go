// Package service реализует бизнес-логику сервиса заказов кафе.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
	"github.com/mmeshcher/cafe-order-system/internal/model"
	"github.com/mmeshcher/cafe-order-system/internal/repository"
	"github.com/mmeshcher/cafe-order-system/internal/validation"
)

// withdrawalCancelPeriod — окно, в течение которого выход из членства можно
// отозвать. Граница закрытая: отзыв ровно через 30 дней ещё допустим.
const withdrawalCancelPeriod = 30 * 24 * time.Hour

// MemberRepository описывает контракт доступа к данным участников.
type MemberRepository interface {
	CreateMember(ctx context.Context, m *model.Member) (int64, error)
	GetMemberByID(ctx context.Context, id int64) (*model.Member, error)
	UpdateMemberStatus(ctx context.Context, id int64, from, to model.MemberStatus, withdrawalTime *time.Time) error
}

// MemberService реализует регистрацию и машину состояний выхода участника.
type MemberService struct {
	repo MemberRepository
	now  func() time.Time
}

// NewMemberService создаёт сервис участников с указанным репозиторием.
func NewMemberService(repo MemberRepository) *MemberService {
	return &MemberService{
		repo: repo,
		now:  time.Now,
	}
}

// Signup регистрирует нового участника в статусе ACTIVE.
func (s *MemberService) Signup(ctx context.Context, name, phoneNumber string, gender model.Gender, birthDate time.Time) (*model.Member, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhone(phoneNumber); err != nil {
		return nil, err
	}
	if err := validation.ValidateBirthDate(birthDate, s.now()); err != nil {
		return nil, err
	}
	if gender != model.GenderMale && gender != model.GenderFemale {
		return nil, apperr.Validation("gender must be MALE or FEMALE")
	}

	m := model.NewMember(name, validation.NormalizePhone(phoneNumber), gender, birthDate, s.now())

	id, err := s.repo.CreateMember(ctx, m)
	if err != nil {
		return nil, err
	}
	m.ID = id

	return m, nil
}

// Withdraw переводит участника из ACTIVE в WITHDRAWN.
func (s *MemberService) Withdraw(ctx context.Context, memberID int64) error {
	m, err := s.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return err
	}

	if !m.IsActive() {
		return apperr.ErrMemberWithdrawn
	}

	now := s.now()
	m.Withdraw(now)

	err = s.repo.UpdateMemberStatus(ctx, memberID, model.MemberStatusActive, model.MemberStatusWithdrawn, m.WithdrawalTime)
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		// Конкурентная операция успела изменить статус первой.
		return apperr.ErrMemberWithdrawn
	}
	if err != nil {
		return fmt.Errorf("withdraw member: %w", err)
	}

	return nil
}

// CancelWithdrawal отзывает выход участника, если не истекло 30-дневное окно.
func (s *MemberService) CancelWithdrawal(ctx context.Context, memberID int64) error {
	m, err := s.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return err
	}

	if !m.IsWithdrawn() {
		return apperr.ErrMemberNotWithdrawn
	}

	if m.WithdrawalTime == nil {
		// WITHDRAWN без времени выхода — повреждённое состояние.
		return apperr.ErrWithdrawalTimeMissing
	}

	limit := m.WithdrawalTime.Add(withdrawalCancelPeriod)
	if s.now().After(limit) {
		return apperr.ErrWithdrawalExpired
	}

	m.CancelWithdrawal()

	err = s.repo.UpdateMemberStatus(ctx, memberID, model.MemberStatusWithdrawn, model.MemberStatusActive, nil)
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return apperr.ErrMemberNotWithdrawn
	}
	if err != nil {
		return fmt.Errorf("cancel withdrawal: %w", err)
	}

	return nil
}

// GetMemberByID возвращает участника по идентификатору.
func (s *MemberService) GetMemberByID(ctx context.Context, memberID int64) (*model.Member, error) {
	return s.repo.GetMemberByID(ctx, memberID)
}
