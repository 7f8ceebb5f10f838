package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/notekeeper/internal/client/client"
	"github.com/dmitrijs2005/notekeeper/internal/client/config"
)

// fakeClient is an in-memory client.Client.
type fakeClient struct {
	session *client.Session
	notes   map[int64]*client.Note
	nextID  int64
	err     error

	signups  []string
	logins   []string
	changed  []string
	deleted  []int64
	searched []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{notes: map[int64]*client.Note{}, nextID: 1}
}

func (f *fakeClient) Signup(_ context.Context, username, email, password string) error {
	f.signups = append(f.signups, username+"|"+email+"|"+password)
	return f.err
}

func (f *fakeClient) Login(_ context.Context, email, password string) (*client.Session, error) {
	f.logins = append(f.logins, email+"|"+password)
	if f.err != nil {
		return nil, f.err
	}
	f.session = &client.Session{Username: "bob", Email: email, Role: "user"}
	s := *f.session
	return &s, nil
}

func (f *fakeClient) Logout() { f.session = nil }

func (f *fakeClient) Session() *client.Session { return f.session }

func (f *fakeClient) ChangePassword(_ context.Context, oldPassword, newPassword string) error {
	if f.session == nil {
		return client.ErrNotLoggedIn
	}
	f.changed = append(f.changed, oldPassword+"|"+newPassword)
	if f.err == nil {
		f.session = nil
	}
	return f.err
}

func (f *fakeClient) ListNotes(context.Context) ([]client.Note, error) {
	if f.session == nil {
		return nil, client.ErrNotLoggedIn
	}
	var out []client.Note
	for _, n := range f.notes {
		out = append(out, *n)
	}
	return out, f.err
}

func (f *fakeClient) SearchNotes(_ context.Context, query string) ([]client.Note, error) {
	f.searched = append(f.searched, query)
	return nil, f.err
}

func (f *fakeClient) GetNote(_ context.Context, id int64) (*client.Note, error) {
	if f.session == nil {
		return nil, client.ErrNotLoggedIn
	}
	n, ok := f.notes[id]
	if !ok {
		return nil, &client.APIError{Status: 404, Msg: "Note not found"}
	}
	cp := *n
	return &cp, nil
}

func (f *fakeClient) CreateNote(_ context.Context, title, content string) (int64, error) {
	id := f.nextID
	f.nextID++
	f.notes[id] = &client.Note{ID: id, Title: title, Content: content, CreatedBy: "bob"}
	return id, f.err
}

func (f *fakeClient) UpdateNote(_ context.Context, id int64, title, content string) error {
	n := f.notes[id]
	n.Title, n.Content = title, content
	return f.err
}

func (f *fakeClient) DeleteNote(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	delete(f.notes, id)
	return f.err
}

func newTestApp(input string, api *fakeClient) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		config: &config.Config{ServerURL: "http://test"},
		api:    api,
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    &out,
	}, &out
}

// stubPasswords makes readPassword return pws in order.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(pws) {
			t.Fatalf("unexpected password prompt #%d", i+1)
		}
		pw := pws[i]
		i++
		return []byte(pw), nil
	}
	t.Cleanup(func() { readPassword = orig })
}
