package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/notes"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
)

// Requester is the caller of a note operation: the role it acts as and the
// username ownership is checked against.
type Requester struct {
	Role     string
	Username string
}

func (r Requester) validate(missingUserMsg string) error {
	if !auth.ValidRole(r.Role) {
		return common.NewValidationError("Invalid or missing role")
	}
	if r.Role == common.RoleUser && r.Username == "" {
		return common.NewValidationError(missingUserMsg)
	}
	return nil
}

// owner is the created_by filter for listings: none for admins.
func (r Requester) owner() string {
	if r.Role == common.RoleAdmin {
		return ""
	}
	return common.SanitizeInput(r.Username, auth.MaxOwnerLen)
}

type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *NoteService {
	return &NoteService{db: db, repomanager: m, logger: logger, now: time.Now}
}

func (s *NoteService) notes() notes.Repository {
	return s.repomanager.Notes(s.db)
}

// List returns every note for admins and the requester's own notes for
// users, newest first.
func (s *NoteService) List(ctx context.Context, r Requester) ([]models.Note, error) {
	if err := r.validate("Missing username for user role"); err != nil {
		return nil, err
	}

	list, err := s.notes().List(ctx, r.owner())
	if err != nil {
		s.logger.Error(ctx, "list notes failed", "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

// Search matches query against title and content within the requester's
// visible notes.
func (s *NoteService) Search(ctx context.Context, r Requester, query string) ([]models.Note, error) {
	if err := r.validate("Missing username for search"); err != nil {
		return nil, err
	}

	q := common.SanitizeInput(query, auth.MaxQueryLen)
	if q == "" {
		return nil, common.NewValidationError("Search query is required")
	}

	list, err := s.notes().Search(ctx, r.owner(), q)
	if err != nil {
		s.logger.Error(ctx, "search notes failed", "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

func (s *NoteService) Get(ctx context.Context, r Requester, id int64) (*models.Note, error) {
	if !auth.ValidRole(r.Role) {
		return nil, common.NewValidationError("Invalid or missing role")
	}

	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(r.Role, n.CreatedBy, r.Username) {
		return nil, &AccessDeniedError{Msg: "Access denied"}
	}
	return n, nil
}

// Create stores a note owned by the requester. Admins may have no username,
// in which case the note belongs to "admin".
func (s *NoteService) Create(ctx context.Context, r Requester, title, content string) (*models.Note, error) {
	if err := r.validate("Missing username for user role"); err != nil {
		return nil, err
	}

	cleanTitle, cleanContent, err := cleanNote(title, content)
	if err != nil {
		return nil, err
	}

	owner := r.Username
	if r.Role == common.RoleAdmin && owner == "" {
		owner = common.RoleAdmin
	}

	n, err := s.notes().Create(ctx, &models.Note{
		Title:     cleanTitle,
		Content:   cleanContent,
		CreatedBy: common.SanitizeInput(owner, auth.MaxOwnerLen),
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error(ctx, "create note failed", "error", err)
		return nil, common.ErrorInternal
	}
	return n, nil
}

// Update rewrites title and content and reports the number of changed rows.
// The owner is never changed.
func (s *NoteService) Update(ctx context.Context, r Requester, id int64, title, content string) (int64, error) {
	if !auth.ValidRole(r.Role) {
		return 0, common.NewValidationError("Invalid or missing role")
	}

	n, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if !auth.CanModify(r.Role, n.CreatedBy, r.Username) {
		return 0, &AccessDeniedError{Msg: "Access denied - you can only edit your own notes"}
	}

	cleanTitle, cleanContent, err := cleanNote(title, content)
	if err != nil {
		return 0, err
	}

	changed, err := s.notes().Update(ctx, id, cleanTitle, cleanContent, s.now())
	if err != nil {
		s.logger.Error(ctx, "update note failed", "note_id", id, "error", err)
		return 0, common.ErrorInternal
	}
	return changed, nil
}

func (s *NoteService) Delete(ctx context.Context, r Requester, id int64) (int64, error) {
	if !auth.ValidRole(r.Role) {
		return 0, common.NewValidationError("Invalid or missing role")
	}

	n, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if !auth.CanModify(r.Role, n.CreatedBy, r.Username) {
		return 0, &AccessDeniedError{Msg: "Access denied - you can only delete your own notes"}
	}

	deleted, err := s.notes().Delete(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "delete note failed", "note_id", id, "error", err)
		return 0, common.ErrorInternal
	}
	return deleted, nil
}

func (s *NoteService) load(ctx context.Context, id int64) (*models.Note, error) {
	n, err := s.notes().Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "load note failed", "note_id", id, "error", err)
		return nil, common.ErrorInternal
	}
	return n, nil
}

func cleanNote(title, content string) (string, string, error) {
	t := common.SanitizeInput(title, auth.MaxTitleLen)
	c := common.SanitizeInput(content, auth.MaxContentLen)
	if t == "" || c == "" {
		return "", "", common.NewValidationError("Title and content are required")
	}
	return t, c, nil
}
