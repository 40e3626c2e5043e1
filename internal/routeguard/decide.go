// Package routeguard applies the navigation decision to page requests:
// skeletons while auth data loads, redirects, and the render gate.
package routeguard

import (
	"net/url"
	"strings"

	"github.com/FACorreiaa/rocketstart-api/internal/client/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/navigation"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

type Outcome string

const (
	RenderSkeleton Outcome = "skeleton"
	RenderChildren Outcome = "children"
	RenderNothing  Outcome = "nothing"
)

type Skeleton string

const (
	SkeletonDashboard Skeleton = "dashboard"
	SkeletonCharts    Skeleton = "charts"
	SkeletonProfile   Skeleton = "profile"
	SkeletonPage      Skeleton = "page"
	SkeletonMinimal   Skeleton = "minimal"
)

// ShowHeader reports whether the placeholder carries the page header.
func (s Skeleton) ShowHeader() bool {
	return s == SkeletonPage
}

// Decision is what to render for one request. Redirect may be set alongside
// any outcome and wins when present.
type Decision struct {
	State    navigation.State
	Outcome  Outcome
	Skeleton Skeleton
	Redirect string
}

// SkeletonFor picks the loading placeholder for a path.
func SkeletonFor(path string) Skeleton {
	switch {
	case path == navigation.PathDashboard:
		return SkeletonDashboard
	case path == "/charts":
		return SkeletonCharts
	case navigation.IsPublic(path):
		return SkeletonMinimal
	case strings.HasPrefix(path, "/profile"):
		return SkeletonProfile
	default:
		return SkeletonPage
	}
}

// Decide resolves the navigation state for user and data (nil when no cached
// auth data exists) and turns it into a render decision.
func Decide(user *types.Identity, data *authdata.AuthData, path string, query url.Values) Decision {
	in := navigation.Inputs{IdentityPresent: user != nil, AuthDataPresent: data != nil}
	if data != nil {
		in.IsSubscriber = data.IsSubscriber
		in.HasCompletedOnboarding = data.HasCompletedOnboarding
	}
	state := navigation.ResolveState(in)

	d := Decision{State: state}
	if target, ok := navigation.Redirect(state, path, query); ok && target != path {
		d.Redirect = target
	}

	switch {
	case state == navigation.StateLoading:
		d.Outcome = RenderSkeleton
		d.Skeleton = SkeletonFor(path)
	case navigation.ShouldShowPage(state, path, query):
		d.Outcome = RenderChildren
	default:
		d.Outcome = RenderNothing
	}
	return d
}
