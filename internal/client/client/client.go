package client

import (
	"context"
)

// Client is the NoteKeeper API as the CLI sees it.
type Client interface {
	Signup(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout()
	Session() *Session
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ListNotes(ctx context.Context) ([]Note, error)
	SearchNotes(ctx context.Context, query string) ([]Note, error)
	GetNote(ctx context.Context, id int64) (*Note, error)
	CreateNote(ctx context.Context, title, content string) (int64, error)
	UpdateNote(ctx context.Context, id int64, title, content string) error
	DeleteNote(ctx context.Context, id int64) error
}
