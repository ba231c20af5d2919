package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
	"golang.org/x/sync/errgroup"
)

// ProfileResolver turns identities into public, password-stripped profiles.
type ProfileResolver interface {
	// Resolve returns the profile of one user, or model.UnknownProfile if the
	// identity collaborator has no such user.
	Resolve(ctx context.Context, id uuid.UUID) (model.Profile, error)
	// ResolvePair performs both lookups concurrently.
	ResolvePair(ctx context.Context, a, b uuid.UUID) (model.Profile, model.Profile, error)
	// ResolveMany keeps the order of ids.
	ResolveMany(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error)
	// Directory lists every user except the caller (sidebar).
	Directory(ctx context.Context, except uuid.UUID) ([]model.Profile, error)
}

type ProfileCache struct {
	users store.UserStore
	cache *lru.Cache[uuid.UUID, model.Profile]
}

// NewProfileCache provides a thread-safe resolver with an internal LRU cache.
func NewProfileCache(users store.UserStore, size int) (*ProfileCache, error) {
	// [MEMORY_MANAGEMENT] Bounded LRU keeps "hot" identities of active chats.
	cache, err := lru.New[uuid.UUID, model.Profile](max(size, 1))
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &ProfileCache{users: users, cache: cache}, nil
}

func (p *ProfileCache) Resolve(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	// [IDENTITY_GUARD]
	if id == uuid.Nil {
		return model.Profile{}, fmt.Errorf("resolve profile: empty id: %w", model.ErrValidation)
	}

	// [HOT_PATH]
	if cached, ok := p.cache.Get(id); ok {
		return cached, nil
	}

	u, err := p.users.GetUser(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// Unknown identities are not cached; the user may be created later.
		return model.UnknownProfile(id), nil
	case err != nil:
		return model.UnknownProfile(id), fmt.Errorf("resolve profile %s: %w", id, err)
	}

	profile := u.Public()
	p.cache.Add(id, profile)
	return profile, nil
}

// ResolvePair uses errgroup so both lookups complete or fail together.
func (p *ProfileCache) ResolvePair(ctx context.Context, a, b uuid.UUID) (model.Profile, model.Profile, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var pa, pb model.Profile
	g.Go(func() error {
		var err error
		pa, err = p.Resolve(gCtx, a)
		return err
	})
	g.Go(func() error {
		var err error
		pb, err = p.Resolve(gCtx, b)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.UnknownProfile(a), model.UnknownProfile(b), fmt.Errorf("parallel profile resolution failed: %w", err)
	}
	return pa, pb, nil
}

func (p *ProfileCache) ResolveMany(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error) {
	res := make([]model.Profile, len(ids))

	var missing []uuid.UUID
	for i, id := range ids {
		if cached, ok := p.cache.Get(id); ok {
			res[i] = cached
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return res, nil
	}

	users, err := p.users.GetUsers(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve profiles: %w", err)
	}
	found := make(map[uuid.UUID]model.Profile, len(users))
	for _, u := range users {
		profile := u.Public()
		found[u.ID] = profile
		p.cache.Add(u.ID, profile)
	}

	for i, id := range ids {
		if res[i].ID != uuid.Nil {
			continue
		}
		if profile, ok := found[id]; ok {
			res[i] = profile
		} else {
			res[i] = model.UnknownProfile(id)
		}
	}
	return res, nil
}

func (p *ProfileCache) Directory(ctx context.Context, except uuid.UUID) ([]model.Profile, error) {
	users, err := p.users.ListUsers(ctx, except)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	res := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profile := u.Public()
		p.cache.Add(u.ID, profile)
		res = append(res, profile)
	}
	return res, nil
}
