package workspace

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "landscape-planner/internal/common/errors"
)

// ============================================================
// Workspace Registry
// ============================================================

// Registry keeps the open workspaces of all users.
type Registry struct {
	mu    sync.Mutex
	items map[string]*Workspace // workspaceID -> workspace
	opts  Options
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		items: make(map[string]*Workspace),
		opts:  opts,
	}
}

// Open creates a new workspace owned by userID.
func (r *Registry) Open(ctx context.Context, userID string) *Workspace {
	w := New(ctx, uuid.NewString(), userID, r.opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[w.ID] = w
	return w
}

// Get returns workspace id if userID owns it.
func (r *Registry) Get(userID, id string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.items[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "workspace %s not found", id)
	}
	if w.UserID != userID {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "workspace %s belongs to another user", id)
	}
	return w, nil
}

// Close stops and forgets workspace id.
func (r *Registry) Close(userID, id string) error {
	w, err := r.Get(userID, id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()

	w.Close()
	return nil
}

// List returns the ids of the workspaces userID owns.
func (r *Registry) List(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := []string{}
	for id, w := range r.items {
		if w.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown closes every workspace.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, w := range items {
		w.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
