package ucd

import (
	"context"
	"errors"
)

// Every error returned by the scraper wraps exactly one of these kinds, use
// errors.Is to branch on them.
var (
	ErrInvalidCredentialsInput = errors.New("username and password must both be provided")
	ErrNavigation              = errors.New("page did not reach the required load state")
	ErrAuthenticationTimeout   = errors.New("authenticated home page was not reached after login")
	ErrMenuLinkNotFound        = errors.New("registration menu link not found")
	ErrReportLinkNotFound      = errors.New("results report link not found")
	ErrUnexpectedPage          = errors.New("landed on an unexpected page")
	ErrNoResults               = errors.New("no score data")
	ErrElementNotFound         = errors.New("element not found")
	ErrElementNotInteractable  = errors.New("element not interactable")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidCredentialsInput, "invalid_credentials_input"},
	{ErrAuthenticationTimeout, "authentication_timeout"},
	{ErrMenuLinkNotFound, "menu_link_not_found"},
	{ErrReportLinkNotFound, "report_link_not_found"},
	{ErrUnexpectedPage, "unexpected_page"},
	{ErrNoResults, "no_results"},
	{ErrElementNotInteractable, "element_not_interactable"},
	{ErrElementNotFound, "element_not_found"},
	{ErrNavigation, "navigation"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// ErrorKind names the kind of err for logs and metrics, errors that wrap
// none of the known kinds are "internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
