package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation — код ошибки Postgres для нарушения уникального ограничения.
const uniqueViolation = "23505"

// IsUniqueViolation сообщает, что ошибка — нарушение unique-констрейнта (23505).
// Сервисы переводят её в свои доменные ошибки.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
