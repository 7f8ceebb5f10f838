package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/notekeeper/internal/client/client"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
)

var errNotLoggedIn = client.ErrNotLoggedIn

func (a *App) List(ctx context.Context) error {
	notes, err := a.api.ListNotes(ctx)
	if err != nil {
		return err
	}
	a.printNotes(notes)
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	query := common.SanitizeInput(strings.Join(args, " "), auth.MaxQueryLen)
	if query == "" {
		return errUsage
	}
	notes, err := a.api.SearchNotes(ctx, query)
	if err != nil {
		return err
	}
	a.printNotes(notes)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	n, err := a.api.GetNote(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "#%d %s\n", n.ID, n.Title)
	fmt.Fprintf(a.out, "by %s, created %s", n.CreatedBy, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	if !n.UpdatedAt.IsZero() && !n.UpdatedAt.Equal(n.CreatedAt) {
		fmt.Fprintf(a.out, ", updated %s", n.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(a.out, "\n\n%s\n", n.Content)
	return nil
}

func (a *App) Add(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	title, content, err := a.readNote("", "")
	if err != nil {
		return err
	}

	id, err := a.api.CreateNote(ctx, title, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Note #%d created.\n", id)
	return nil
}

// Edit shows the current note and lets the user replace title and content.
// Empty input keeps the current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	n, err := a.api.GetNote(ctx, id)
	if err != nil {
		return err
	}

	title, content, err := a.readNote(n.Title, n.Content)
	if err != nil {
		return err
	}

	if err := a.api.UpdateNote(ctx, id, title, content); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Note #%d updated.\n", id)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	id, err := parseID(args)
	if err != nil {
		return err
	}

	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete note #%d? (y/N)", id), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	if err := a.api.DeleteNote(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Note #%d deleted.\n", id)
	return nil
}

func (a *App) readNote(curTitle, curContent string) (string, string, error) {
	titlePrompt, contentPrompt := "Title", "Content"
	if curTitle != "" {
		titlePrompt = fmt.Sprintf("Title [%s]", curTitle)
		contentPrompt = "Content (empty keeps the current text)"
	}

	title, err := getSimpleText(a.reader, titlePrompt, a.out)
	if err != nil {
		return "", "", err
	}
	if title == "" {
		title = curTitle
	}

	content, err := getMultiline(a.reader, contentPrompt, a.out)
	if err != nil {
		return "", "", err
	}
	if content == "" {
		content = curContent
	}

	title = common.SanitizeInput(title, auth.MaxTitleLen)
	content = common.SanitizeInput(content, auth.MaxContentLen)
	if title == "" || content == "" {
		return "", "", common.NewValidationError("Title and content are required")
	}
	return title, content, nil
}

func (a *App) printNotes(notes []client.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(a.out, "No notes.")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tOWNER\tCREATED")
	for _, n := range notes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, n.Title, n.CreatedBy, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError("Invalid note ID")
	}
	return id, nil
}
