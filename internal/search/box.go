package search

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/inspector/internal/notify"
)

// Box holds the search input. The query survives failed searches.
type Box struct {
	resolver *Resolver
	notifier notify.Notifier

	mu    sync.Mutex
	query string
}

func NewBox(resolver *Resolver, notifier notify.Notifier) *Box {
	return &Box{resolver: resolver, notifier: notify.OrNoop(notifier)}
}

func (b *Box) SetQuery(q string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = q
}

func (b *Box) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

// Submit searches the current query from loc and clears it only when the
// search produced a target.
func (b *Box) Submit(ctx context.Context, loc Location) (Target, error) {
	query := b.Query()
	target, err := b.resolver.Search(ctx, loc, query)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyQuery):
		return Target{}, err
	case errors.Is(err, ErrNoResult):
		b.notifier.Notify(notify.LevelWarn, notify.MsgNoResult)
		return Target{}, err
	default:
		b.notifier.Notify(notify.LevelError, notify.MsgSearchFailed)
		return Target{}, err
	}

	b.mu.Lock()
	if b.query == query {
		b.query = ""
	}
	b.mu.Unlock()
	return target, nil
}
