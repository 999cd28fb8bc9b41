package util

import "iter"

// Stack is a LIFO container. The zero value is an empty stack.
type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v A) {
	s.items = append(s.items, v)
}

// Pop removes the top of the stack. ok is false if the stack was empty.
func (s *Stack[A]) Pop() (ret A, ok bool) {
	if len(s.items) <= 0 {
		return ret, false
	}
	lastIndex := len(s.items) - 1
	ret = s.items[lastIndex]
	var zero A
	s.items[lastIndex] = zero
	s.items = s.items[:lastIndex]
	return ret, true
}

// Peek returns the top of the stack without removing it
func (s *Stack[A]) Peek() (ret A, ok bool) {
	if len(s.items) <= 0 {
		return ret, false
	}
	return s.items[len(s.items)-1], true
}

func (s *Stack[A]) Len() int {
	return len(s.items)
}

// FromTop iterates from the most recently pushed element to the oldest one,
// along with their distance from the top (the top is 0)
func (s *Stack[A]) FromTop() iter.Seq2[int, A] {
	return func(yield func(int, A) bool) {
		for i := len(s.items) - 1; i >= 0; i-- {
			if !yield(len(s.items)-1-i, s.items[i]) {
				return
			}
		}
	}
}
