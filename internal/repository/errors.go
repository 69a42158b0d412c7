// Package repository — доступ к PostgreSQL (pgx) для всех сущностей.
// Успешные записи публикуются в realtime-хаб как события изменений строк.
package repository

import "errors"

var (
	// ErrNotFound — строка не найдена.
	ErrNotFound = errors.New("not found")
	// ErrConflict — нарушение инварианта (дубликат, лимит участников).
	ErrConflict = errors.New("conflict")
)
