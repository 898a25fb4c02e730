package memory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range users {
		for _, existing := range r.s.users {
			if existing.Email == u.Email {
				return nil, repos.ErrDuplicate
			}
		}
		ensureID(&u.ID)
		if u.Role == "" {
			u.Role = types.RoleUser
		}
		cp := *u
		r.s.users[u.ID] = &cp
	}
	return users, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.User
	for _, id := range userIDs {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.User
	for _, email := range userEmails {
		for _, u := range r.s.users {
			if u.Email == email {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (r *userRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.User
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sortStable(out, func(a, b *types.User) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return out, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, tx *gorm.DB, userID uuid.UUID, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if ok {
		u.Role = role
	}
	return notFoundIfZero(ok)
}

type profileRepo struct{ s *Store }

func (r *profileRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Profile) ([]*types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range rows {
		ensureID(&p.ID)
		cp := *p
		r.s.profiles = append(r.s.profiles, &cp)
	}
	return rows, nil
}

func (r *profileRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Profile
	for _, email := range emails {
		for _, p := range r.s.profiles {
			if p.Email == email {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (r *profileRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Profile
	for _, id := range userIDs {
		for _, p := range r.s.profiles {
			if p.UserID == id {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

type userTokenRepo struct{ s *Store }

func (r *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.UserToken) ([]*types.UserToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range rows {
		ensureID(&t.ID)
		cp := *t
		r.s.tokens = append(r.s.tokens, &cp)
	}
	return rows, nil
}

func (r *userTokenRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.UserToken
	for _, id := range userIDs {
		for _, t := range r.s.tokens {
			if t.UserID == id {
				cp := *t
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (r *userTokenRepo) GetByTokens(ctx context.Context, tx *gorm.DB, tokens []string) ([]*types.UserToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.UserToken
	for _, token := range tokens {
		for _, t := range r.s.tokens {
			if t.RefreshToken == token {
				cp := *t
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (r *userTokenRepo) DeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keep := r.s.tokens[:0]
	for _, t := range r.s.tokens {
		drop := false
		for _, id := range userIDs {
			if t.UserID == id {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, t)
		}
	}
	r.s.tokens = keep
	return nil
}
