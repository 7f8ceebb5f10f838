package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
)

// getSimpleText, getPassword and getMultiline are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

// Signup prompts for username, email and password, checks them against the
// same rules the server applies and creates the account.
func (a *App) Signup(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	if !auth.ValidUsername(username) {
		return common.NewValidationError("Username must be 3-30 characters (letters, numbers, underscore, hyphen only)")
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	email = common.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return common.NewValidationError("Please provide a valid email address.")
	}

	password, err := a.newPassword("Enter password")
	if err != nil {
		return err
	}

	if err := a.api.Signup(ctx, username, email, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "✓ Account created. You can login now.")
	return nil
}

// newPassword reads a password twice and applies the password policy.
func (a *App) newPassword(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)

	if err := auth.CheckPasswordPolicy(string(pw)); err != nil {
		return "", err
	}

	again, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(again)

	if string(pw) != string(again) {
		return "", common.NewValidationError("Passwords do not match.")
	}
	return string(pw), nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	email = common.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return common.NewValidationError("Please provide a valid email address.")
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.api.Login(ctx, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Welcome, %s (%s).\n", s.Username, s.Role)
	if s.LastLogin != nil {
		fmt.Fprintf(a.out, "Last login: %s\n", s.LastLogin.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Logout forgets the session kept in memory.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	a.api.Logout()
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// ChangePassword asks for the current and a new password. The server revokes
// every token of the account, so the session ends on success.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	current, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	if next == string(current) {
		return common.NewValidationError("New password must be different from current password.")
	}

	if err := a.api.ChangePassword(ctx, string(current), next); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "✓ Password changed. Please login again.")
	return nil
}
