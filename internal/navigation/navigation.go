// Package navigation decides where a user belongs from their identity and
// auth data. Everything here is pure.
package navigation

import (
	"net/url"
)

type State string

const (
	StateLoading         State = "loading"
	StateUnauthenticated State = "unauthenticated"
	StateNeedsOnboarding State = "needs_onboarding"
	StateAuthenticated   State = "authenticated"
)

const (
	PathHome       = "/"
	PathLogin      = "/login"
	PathOnboarding = "/onboarding"
	PathDashboard  = "/dashboard"

	// PaymentSuccessParam marks a return from checkout while the subscription
	// may still be propagating.
	PaymentSuccessParam = "payment_success"
)

var publicRoutes = map[string]struct{}{
	PathHome:           {},
	PathLogin:          {},
	"/signup":          {},
	"/verify-email":    {},
	"/reset-password":  {},
	"/update-password": {},
}

// IsPublic reports whether path is reachable without signing in.
func IsPublic(path string) bool {
	_, ok := publicRoutes[path]
	return ok
}

// Inputs are the facts the state is derived from.
type Inputs struct {
	IdentityPresent        bool
	AuthDataPresent        bool
	IsSubscriber           bool
	HasCompletedOnboarding bool
}

func ResolveState(in Inputs) State {
	switch {
	case !in.IdentityPresent:
		return StateUnauthenticated
	case !in.AuthDataPresent:
		return StateLoading
	case !in.IsSubscriber && !in.HasCompletedOnboarding:
		return StateNeedsOnboarding
	default:
		return StateAuthenticated
	}
}

func paymentSucceeded(query url.Values) bool {
	return query != nil && query.Has(PaymentSuccessParam)
}

// Redirect returns where to send the user, if anywhere.
func Redirect(state State, path string, query url.Values) (string, bool) {
	switch state {
	case StateUnauthenticated:
		if !IsPublic(path) {
			return PathLogin, true
		}
	case StateNeedsOnboarding:
		if path != PathOnboarding && !paymentSucceeded(query) {
			return PathOnboarding, true
		}
	case StateAuthenticated:
		if path == PathLogin {
			return PathDashboard, true
		}
	}
	return "", false
}

// ShouldShowPage is the render gate matching Redirect.
func ShouldShowPage(state State, path string, query url.Values) bool {
	if IsPublic(path) {
		return true
	}
	switch state {
	case StateLoading, StateAuthenticated:
		return true
	case StateNeedsOnboarding:
		return path == PathOnboarding || paymentSucceeded(query)
	default:
		return false
	}
}

// Destination is the default landing page for a state. Loading has none.
func Destination(state State) string {
	switch state {
	case StateUnauthenticated:
		return PathLogin
	case StateNeedsOnboarding:
		return PathOnboarding
	case StateAuthenticated:
		return PathDashboard
	default:
		return ""
	}
}
