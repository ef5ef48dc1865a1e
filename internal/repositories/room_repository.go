package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chatroom-service/internal/models"
)

var ErrRoomNotFound = errors.New("chat room not found")

const roomColumns = `id, name, owner_id, owner_name, status, created_at, modified_at`

// RoomRepository abstracts chat room persistence. Membership mutations use
// set semantics executed server-side: adding a present member and removing an
// absent one are both no-ops.
type RoomRepository interface {
	Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error)
	Get(ctx context.Context, roomID string) (models.ChatRoom, error)
	List(ctx context.Context) ([]models.ChatRoom, error)
	ListForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	Rename(ctx context.Context, roomID, name string) (models.ChatRoom, error)
	SetStatus(ctx context.Context, roomID, status string) (models.ChatRoom, error)
	AddMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error)
	RemoveMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error)
	Delete(ctx context.Context, roomID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create inserts the room and its initial membership atomically.
func (r *RoomRepo) Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var stored models.ChatRoom
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO chat_rooms (id, name, owner_id, owner_name, status) VALUES ($1, $2, $3, $4, $5)
         RETURNING `+roomColumns,
		room.ID, room.Name, room.OwnerID, room.OwnerName, room.Status).
		StructScan(&stored); err != nil {
		return models.ChatRoom{}, err
	}

	for _, m := range room.Members {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id, user_name) VALUES ($1, $2, $3)
             ON CONFLICT (room_id, user_id) DO NOTHING`,
			stored.ID, m.UserID, m.UserName); err != nil {
			return models.ChatRoom{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.ChatRoom{}, err
	}
	stored.Members = room.Members
	return stored, nil
}

// Get fetches a single room with its membership set.
func (r *RoomRepo) Get(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	if err != nil {
		return models.ChatRoom{}, err
	}
	if room.Members, err = r.members(ctx, roomID); err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// List returns every room, newest first.
func (r *RoomRepo) List(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM chat_rooms ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return r.attachMembers(ctx, rooms)
}

// ListForUser returns rooms whose membership set contains the user.
func (r *RoomRepo) ListForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT c.id, c.name, c.owner_id, c.owner_name, c.status, c.created_at, c.modified_at
         FROM chat_rooms c INNER JOIN room_members rm ON rm.room_id = c.id
         WHERE rm.user_id=$1 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return r.attachMembers(ctx, rooms)
}

// Rename updates the room name and bumps modified_at.
func (r *RoomRepo) Rename(ctx context.Context, roomID, name string) (models.ChatRoom, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_rooms SET name=$2, modified_at=NOW() WHERE id=$1`, roomID, name)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return r.Get(ctx, roomID)
}

// SetStatus toggles the room between active and closed.
func (r *RoomRepo) SetStatus(ctx context.Context, roomID, status string) (models.ChatRoom, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_rooms SET status=$2, modified_at=NOW() WHERE id=$1`, roomID, status)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return r.Get(ctx, roomID)
}

// AddMember adds the member unless already present. The conflict target makes
// the read-modify-write server-side, so concurrent adds cannot duplicate.
func (r *RoomRepo) AddMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, user_name) VALUES ($1, $2, $3)
         ON CONFLICT (room_id, user_id) DO NOTHING`,
		roomID, member.UserID, member.UserName)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ChatRoom{}, ErrRoomNotFound
		}
		return models.ChatRoom{}, err
	}
	return r.Get(ctx, roomID)
}

// RemoveMember deletes the exact {userId,userName} pair; removing a
// non-member changes nothing.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error) {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id=$1 AND user_id=$2 AND user_name=$3`,
		roomID, member.UserID, member.UserName)
	if err != nil {
		return models.ChatRoom{}, err
	}
	return r.Get(ctx, roomID)
}

// Delete removes the room record. Members cascade; messages are purged
// separately by the messaging pipeline.
func (r *RoomRepo) Delete(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) members(ctx context.Context, roomID string) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT user_id, user_name FROM room_members WHERE room_id=$1 ORDER BY joined_at ASC`, roomID)
	return members, err
}

func (r *RoomRepo) attachMembers(ctx context.Context, rooms []models.ChatRoom) ([]models.ChatRoom, error) {
	for i := range rooms {
		members, err := r.members(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Members = members
	}
	return rooms, nil
}

func isForeignKeyViolation(err error) bool {
	type coder interface{ SQLState() string }
	var pqErr coder
	if errors.As(err, &pqErr) {
		return pqErr.SQLState() == "23503"
	}
	return false
}
