// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
)

// Мобильный номер после нормализации: 01X и 7-8 цифр.
var phonePattern = regexp.MustCompile(`^01[016789]\d{7,8}$`)

// NormalizePhone убирает разделители из номера телефона.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer("-", "", " ", "")
	return replacer.Replace(phone)
}

// ValidatePhone проверяет формат мобильного номера после нормализации.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(NormalizePhone(phone)) {
		return apperr.Validation("invalid phone number format")
	}
	return nil
}

// ValidateName проверяет, что имя содержит от 2 до 10 символов.
func ValidateName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < 2 || length > 10 {
		return apperr.Validation("name must be 2-10 characters long")
	}
	return nil
}

// ValidateBirthDate проверяет, что дата рождения строго в прошлом.
// Сравнение выполняется с точностью до дня: сегодняшняя дата отклоняется
// независимо от времени суток.
func ValidateBirthDate(birthDate, now time.Time) error {
	today := now.UTC().Truncate(24 * time.Hour)
	if !birthDate.UTC().Truncate(24 * time.Hour).Before(today) {
		return apperr.Validation("birth date must be in the past")
	}
	return nil
}
