package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shellkeeper/internal/client/client"
	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/dmitrijs2005/shellkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// ErrNotAuthenticated is returned by one-shot commands that found no valid
// session, so the process can exit non-zero.
var ErrNotAuthenticated = errors.New("not authenticated")

// Check runs a session check and prints the resulting user.
func (a *App) Check(ctx context.Context) error {
	res := a.guard.CheckSession(ctx)
	if !res.Authenticated {
		a.user = nil
		fmt.Fprintln(a.out, "Not authenticated")
		return ErrNotAuthenticated
	}
	a.user = res.User
	fmt.Fprintf(a.out, "Authenticated as %s\n", describe(res.User))
	return a.printUser(res.User)
}

// WhoAmI prints the current user without a full session check.
func (a *App) WhoAmI(ctx context.Context) error {
	u := a.guard.CurrentUser(ctx)
	if u == nil {
		fmt.Fprintln(a.out, "Nobody is signed in")
		return ErrNotAuthenticated
	}
	return a.printUser(u)
}

// Protect enters a protected view: it stays when authenticated and is
// redirected otherwise.
func (a *App) Protect(ctx context.Context, redirectPath string) error {
	if a.guard.ProtectRoute(ctx, redirectPath) {
		fmt.Fprintln(a.out, "Access granted")
		return nil
	}
	return a.Location(ctx)
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.guard.Login(ctx, email, string(password)); err != nil {
		switch {
		case errors.Is(err, client.ErrUnavailable):
			fmt.Fprintln(a.out, "Backend unavailable, try again later")
		case client.StatusCode(err) == 400:
			fmt.Fprintln(a.out, "Invalid email or password")
		default:
			fmt.Fprintf(a.out, "Login unsuccessful: %v\n", err)
		}
		return err
	}

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout signs out and lands on the login view.
func (a *App) Logout(ctx context.Context) error {
	a.guard.Logout(ctx)
	return a.Location(ctx)
}

// Location prints the view the guard navigated to last.
func (a *App) Location(ctx context.Context) error {
	loc, err := a.locator.Location(ctx)
	if err != nil {
		return err
	}
	if loc == "" {
		loc = "(none)"
	}
	fmt.Fprintf(a.out, "Location: %s\n", loc)
	return nil
}

func (a *App) printUser(u models.User) error {
	b, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func describe(u models.User) string {
	if email, ok := u["email"].(string); ok && email != "" {
		return fmt.Sprintf("%s (%s)", email, u.ID())
	}
	return u.ID()
}
