// Package pattern matches tokenized commands, such as the console
// shortcuts, and extracts their arguments.
package pattern

type (
	// Matcher consumes a prefix of input and returns what is left.
	Matcher[T any, E ~[]T] interface {
		Match(input E) (bool, E)
	}

	equalityMatcher[T comparable, E ~[]T] struct {
		expected T
	}

	captureMatcher[T any, E ~[]T] struct {
		dest *T
	}

	restMatcher[T any, E ~[]T] struct {
		dest *E
	}

	all[T any, E ~[]T] struct {
		matchers []Matcher[T, E]
	}
)

func (em equalityMatcher[T, E]) Match(input E) (bool, E) {
	if len(input) == 0 || input[0] != em.expected {
		return false, input
	}
	return true, input[1:]
}

func (cm captureMatcher[T, E]) Match(input E) (bool, E) {
	if len(input) == 0 {
		return false, input
	}
	*cm.dest = input[0]
	return true, input[1:]
}

func (rm restMatcher[T, E]) Match(input E) (bool, E) {
	if len(input) == 0 {
		return false, input
	}
	*rm.dest = append((*rm.dest)[:0], input...)
	return true, input[len(input):]
}

// Match succeeds only if every matcher matched and the whole input was
// consumed.
func (m all[T, E]) Match(input E) (bool, E) {
	var matches int
	for _, m := range m.matchers {
		var match bool
		match, input = m.Match(input)
		if !match {
			return false, nil
		}
		matches++
		if len(input) == 0 {
			break
		}
	}
	return len(input) == 0 && matches == len(m.matchers), nil
}

func All[T any, E ~[]T](entries ...Matcher[T, E]) Matcher[T, E] {
	return all[T, E]{matchers: entries}
}

func Equal[T comparable](expected T) Matcher[T, []T] {
	return equalityMatcher[T, []T]{expected: expected}
}

// Capture stores one element in dest.
func Capture[T any](dest *T) Matcher[T, []T] {
	return captureMatcher[T, []T]{dest: dest}
}

// Rest stores every remaining element in dest, at least one is required.
func Rest[T any](dest *[]T) Matcher[T, []T] {
	return restMatcher[T, []T]{dest: dest}
}

func Prefix[T comparable](prefix []T, tail Matcher[T, []T]) Matcher[T, []T] {
	head := make([]Matcher[T, []T], len(prefix))
	for i, v := range prefix {
		head[i] = Equal(v)
	}
	if tail != nil {
		head = append(head, tail)
	}
	return All[T, []T](head...)
}

func Match[T any](input []T, matchers ...Matcher[T, []T]) bool {
	if len(matchers) == 1 {
		m, _ := matchers[0].Match(input)
		return m
	}
	m, _ := All[T](matchers...).Match(input)
	return m
}
