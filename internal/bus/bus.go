// Package bus provides a small in-process publish/subscribe topic.  Subscribers register a handler and get back a
// token; only the holder of a token can remove that subscription.
package bus

import (
	"sync"
	"sync/atomic"
)

// Token identifies one subscription on one topic.  The zero Token is never issued.
type Token uint64

var nextToken atomic.Uint64

// Topic fans published values out to every subscribed handler.  Handlers run on the publisher's goroutine, in
// subscription order, and must not block for long.
type Topic[T any] struct {
	mu       sync.RWMutex
	handlers map[Token]func(T)
	order    []Token
}

// Subscribe registers handler and returns the token needed to remove it
func (t *Topic[T]) Subscribe(handler func(T)) Token {
	token := Token(nextToken.Add(1))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handlers == nil {
		t.handlers = make(map[Token]func(T))
	}
	t.handlers[token] = handler
	t.order = append(t.order, token)
	return token
}

// Unsubscribe removes the subscription for token.  Reports whether the token was live on this topic.
func (t *Topic[T]) Unsubscribe(token Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.handlers[token]; !ok {
		return false
	}
	delete(t.handlers, token)
	out := t.order[:0]
	for _, tok := range t.order {
		if tok != token {
			out = append(out, tok)
		}
	}
	t.order = out
	return true
}

// Publish delivers v to a snapshot of the current subscribers
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	handlers := make([]func(T), 0, len(t.order))
	for _, tok := range t.order {
		handlers = append(handlers, t.handlers[tok])
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(v)
	}
}

// Len returns the number of live subscriptions
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}
