package scene

import "landscape-planner/internal/planner/models"

// ============================================================
// Selection Controller
// ============================================================

// SelectionController owns the single optional active entity id.
type SelectionController struct {
	graph  *Graph
	active string
}

// Select makes id the active entity, replacing any previous selection.
// Unknown ids are ignored.
func (s *SelectionController) Select(id string) bool {
	if _, ok := s.graph.index[id]; !ok {
		return false
	}
	if s.active == id {
		return true
	}
	s.active = id
	s.graph.notify(Change{Kind: ChangeSelection, ID: id, Entity: s.graph.index[id]})
	return true
}

// Clear sets the selection to none.
func (s *SelectionController) Clear() {
	if s.active == "" {
		return
	}
	s.active = ""
	s.graph.notify(Change{Kind: ChangeSelection})
}

// OnSelectionChanged handles a surface notification. When several drawables
// are hit the first reported candidate wins; candidates that are not live
// entities (grid lines, stale ids) are skipped. No candidate clears.
func (s *SelectionController) OnSelectionChanged(candidates []string) {
	for _, id := range candidates {
		if s.Select(id) {
			return
		}
	}
	s.Clear()
}

// ActiveID returns the selected id or "".
func (s *SelectionController) ActiveID() string {
	return s.active
}

// Active returns the selected entity.
func (s *SelectionController) Active() (models.Entity, bool) {
	if s.active == "" {
		return nil, false
	}
	e, ok := s.graph.index[s.active]
	return e, ok
}
