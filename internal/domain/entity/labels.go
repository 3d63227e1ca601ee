package entity

import "github.com/pkg/errors"

// GoodLabel класс, означающий "без дефекта".
const GoodLabel = "good"

// Labels упорядоченный список классов выходного слоя. Индекс i называет
// выход i; порядок задан при обучении и не должен меняться отдельно от
// модели.
type Labels []string

// NewLabels проверяет и копирует список классов.
func NewLabels(classes []string) (Labels, error) {
	if len(classes) == 0 {
		return nil, errors.New("class list is empty")
	}
	seen := make(map[string]struct{}, len(classes))
	for i, c := range classes {
		if c == "" {
			return nil, errors.Errorf("class %d has an empty name", i)
		}
		if _, ok := seen[c]; ok {
			return nil, errors.Errorf("duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	out := make(Labels, len(classes))
	copy(out, classes)
	return out, nil
}

// At возвращает метку для индекса выхода.
func (l Labels) At(i int) (string, bool) {
	if i < 0 || i >= len(l) {
		return "", false
	}
	return l[i], true
}

// Contains сообщает, есть ли name среди меток.
func (l Labels) Contains(name string) bool {
	for _, v := range l {
		if v == name {
			return true
		}
	}
	return false
}

// IsDefect сообщает, означает ли метка дефектное яйцо.
func IsDefect(label string) bool {
	return label != GoodLabel
}

// ErrInvariant отмечает нарушение внутренней согласованности. Такие ошибки
// никогда не списываются на входные данные.
var ErrInvariant = errors.New("invariant violated")
