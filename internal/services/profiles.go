package services

import (
	"context"
	"fmt"
	"strings"

	"weddingsync/internal/core"
)

// AddProfile registers a new profile and makes it active.
func (s *WorkspaceService) AddProfile(ctx context.Context, name string) (core.Profile, error) {
	name = strings.TrimSpace(name)
	var p core.Profile
	err := s.mutate(ctx, "profile.added", func(st *state) (part, error) {
		if name == "" {
			return 0, core.ErrEmptyProfileName
		}
		p = core.Profile{ID: s.newID(), Name: name}
		ws, err := s.store.LoadWorkspace(ctx, p.ID)
		if err != nil {
			return 0, fmt.Errorf("load workspace %s: %w", p.ID, err)
		}
		st.profiles = append(st.profiles, p)
		s.activate(st, p, ws)
		return partProfiles, nil
	})
	return p, err
}

// SwitchProfile makes another registered profile active and loads its data.
func (s *WorkspaceService) SwitchProfile(ctx context.Context, id string) (core.Profile, error) {
	var p core.Profile
	err := s.mutate(ctx, "profile.switched", func(st *state) (part, error) {
		i := findProfile(st.profiles, id)
		if i < 0 {
			return 0, ErrProfileNotFound
		}
		p = st.profiles[i]
		ws, err := s.store.LoadWorkspace(ctx, p.ID)
		if err != nil {
			return 0, fmt.Errorf("load workspace %s: %w", p.ID, err)
		}
		s.activate(st, p, ws)
		return partProfiles, nil
	})
	return p, err
}

// activate swaps the workspace in st. Staged analyses belong to the
// previous profile and are dropped with it.
func (s *WorkspaceService) activate(st *state, p core.Profile, ws core.Workspace) {
	st.active = p
	st.ws = ws
	st.staged = map[string]*core.BankAnalysis{}
}

// deleteProfile removes a profile from the registry. When the active profile
// goes away the first remaining profile, or the default, takes over.
func (s *WorkspaceService) deleteProfile(ctx context.Context, st *state, id string) (part, error) {
	if id == core.DefaultProfileID {
		return 0, ErrDefaultProfile
	}
	i := findProfile(st.profiles, id)
	if i < 0 {
		return 0, ErrProfileNotFound
	}
	st.profiles = append(st.profiles[:i], st.profiles[i+1:]...)
	if len(st.profiles) == 0 {
		st.profiles = []core.Profile{core.DefaultProfile()}
	}
	if st.active.ID == id {
		next := st.profiles[0]
		ws, err := s.store.LoadWorkspace(ctx, next.ID)
		if err != nil {
			return 0, fmt.Errorf("load workspace %s: %w", next.ID, err)
		}
		s.activate(st, next, ws)
	}
	return partProfiles, nil
}
