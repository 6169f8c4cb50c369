package board

import (
	"slices"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

func (r *Room) userIndex(id string) int {
	return slices.IndexFunc(r.Users, func(u types.User) bool { return u.Id == id })
}

// User returns the roster entry for a connection.
func (r *Room) User(id string) (types.User, bool) {
	if i := r.userIndex(id); i >= 0 {
		return r.Users[i], true
	}
	return types.User{}, false
}

// UpsertUser adds a connection to the roster or refreshes its entry. The
// creator and everyone in a non-private room always hold edit rights.
func (r *Room) UpsertUser(id, name string) types.User {
	defer r.touch()

	i := r.userIndex(id)
	if i < 0 {
		if name == "" {
			name = AnonymousName
		}
		perm := types.PermissionView
		if id == r.CreatorId || !r.IsPrivate {
			perm = types.PermissionEdit
		}
		u := types.User{Id: id, Name: name, Permissions: perm}
		r.Users = append(r.Users, u)
		return u
	}

	u := &r.Users[i]
	if name != "" {
		u.Name = name
	}
	if id == r.CreatorId || r.IsPublic() {
		u.Permissions = types.PermissionEdit
	}
	return *u
}

// RemoveUser drops a connection from the roster. The public room forgets its
// chat once nobody is left.
func (r *Room) RemoveUser(id string) bool {
	i := r.userIndex(id)
	if i < 0 {
		return false
	}

	r.Users = slices.Delete(r.Users, i, i+1)
	if r.IsPublic() && len(r.Users) == 0 {
		r.Messages = []types.Message{}
	}
	r.touch()
	return true
}

// CanMutate reports whether the connection currently holds edit rights.
func (r *Room) CanMutate(id string) bool {
	u, ok := r.User(id)
	return ok && u.Permissions == types.PermissionEdit
}

// SetPermission changes the permission of targetId on behalf of callerId.
func (r *Room) SetPermission(callerId, targetId string, perm types.Permission) (types.User, error) {
	if callerId != r.CreatorId {
		return types.User{}, ErrNotCreator
	}
	if !perm.Valid() {
		return types.User{}, ErrInvalidPermission
	}
	if r.IsPublic() {
		return types.User{}, ErrPublicRoom
	}
	if targetId == r.CreatorId {
		return types.User{}, ErrCreatorPermission
	}

	i := r.userIndex(targetId)
	if i < 0 {
		return types.User{}, ErrUserNotFound
	}

	r.Users[i].Permissions = perm
	r.touch()
	return r.Users[i], nil
}

// Snapshot is what a connection receives after joining.
type Snapshot struct {
	RoomId      string           `json:"room_id"`
	Strokes     []types.Drawable `json:"strokes"`
	Permissions types.Permission `json:"permissions"`
	Messages    []types.Message  `json:"messages"`
	Users       []types.User     `json:"users"`
	CreatorId   string           `json:"creator_id"`
}

// SnapshotFor builds the join payload for a connection. The public room has
// no durable chat history to hand out.
func (r *Room) SnapshotFor(id string) Snapshot {
	perm := types.PermissionView
	if u, ok := r.User(id); ok {
		perm = u.Permissions
	}
	if r.IsPublic() {
		perm = types.PermissionEdit
	}

	msgs := []types.Message{}
	if !r.IsPublic() {
		msgs = slices.Clone(r.Messages)
	}

	return Snapshot{
		RoomId:      r.RoomId,
		Strokes:     types.CloneStrokes(r.Strokes),
		Permissions: perm,
		Messages:    msgs,
		Users:       slices.Clone(r.Users),
		CreatorId:   r.CreatorId,
	}
}
