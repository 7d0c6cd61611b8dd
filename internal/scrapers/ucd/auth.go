package ucd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/internal/components/telemetry"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	report_auth_cookie_dialog = "auth.cookie-dialog"
	report_auth_login         = "auth.login"
)

type authState string

const (
	authStart               authState = "start"
	authWelcomePageLoaded   authState = "welcome-page-loaded"
	authCookieDialogHandled authState = "cookie-dialog-handled"
	authLoginFormFilled     authState = "login-form-filled"
	authAuthenticated       authState = "authenticated"
)

type authFlow struct {
	nav    *Navigator
	portal Portal
	home   *regexp.Regexp
	tel    telemetry.API
	state  authState
}

func (a *authFlow) transition(next authState) {
	a.tel.ReportDebug(fmt.Sprintf("auth: %s -> %s", a.state, next))
	a.state = next
}

// login leaves the navigator on the home menu of an authenticated session.
func (a *authFlow) login(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	err := a.run(ctx, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (a *authFlow) run(ctx context.Context, creds Credentials) error {
	a.state = authStart

	err := a.nav.Goto(ctx, a.portal.WelcomeUrl(), browser.LoadDOMContent)
	if err != nil {
		return err
	}
	a.transition(authWelcomePageLoaded)

	cookie := a.nav.Locate(browser.ByRole(browser.RoleButton, a.portal.CookieButton))
	if cookie.Visible(ctx) {
		err := cookie.Click(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			a.tel.ReportWarning(report_auth_cookie_dialog, err)
		}
	}
	a.transition(authCookieDialogHandled)

	err = a.nav.Locate(browser.ByRole(browser.RoleLink, a.portal.LoginLink)).Click(ctx)
	if err != nil {
		return fmt.Errorf("open login form: %w", err)
	}
	err = a.nav.Locate(browser.ByRole(browser.RoleTextbox, a.portal.UsernameBox)).Fill(ctx, creds.Username)
	if err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	err = a.nav.Locate(browser.ByRole(browser.RoleTextbox, a.portal.PasswordBox)).Fill(ctx, creds.Password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	a.transition(authLoginFormFilled)

	err = a.submit(ctx)
	if err != nil {
		return err
	}

	err = a.nav.WaitForLoadState(ctx, browser.LoadNetworkIdle)
	if err != nil {
		return err
	}
	a.transition(authAuthenticated)
	return nil
}

// submit clicks the login button while waiting for the redirect to the home
// menu, the wait starts before the click so a fast redirect is not missed.
func (a *authFlow) submit(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := a.nav.WaitForURL(groupCtx, a.home, a.nav.timeouts.Login)
		if errors.Is(err, errWaitTimeout) {
			return fmt.Errorf("%w: %w", ErrAuthenticationTimeout, err)
		}
		return err
	})
	group.Go(func() error {
		err := a.nav.Locate(browser.ByRole(browser.RoleButton, a.portal.LoginButton)).Click(groupCtx)
		if err != nil {
			return fmt.Errorf("submit login form: %w", err)
		}
		return nil
	})

	err := group.Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.tel.ReportWarning(report_auth_login, err)
		return err
	}
	return nil
}
