// Package filler executes fill plans against a live page through a narrow
// set of page primitives.
package filler

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/valuestore"
)

// PagePrimitives is the only surface the executor touches on a live page.
// The production implementation drives a browser over CDP; tests script it.
//
// Every mutation primitive resolves its locator against the live document at
// call time, so DOM churn between calls cannot leave the executor holding a
// stale handle.
type PagePrimitives interface {
	// Snapshot returns a parse of the page's current outer HTML.
	Snapshot(ctx context.Context) (*html.Node, error)

	// SetNativeValue assigns an input or textarea value through the native
	// value setter and dispatches input, change, and blur events.
	SetNativeValue(ctx context.Context, loc schemas.Locator, value string) error

	// SetRichText replaces a contenteditable region's content.
	SetRichText(ctx context.Context, loc schemas.Locator, value string) error

	// SetEditorValue assigns a value through a code editor instance attached
	// at or near the locator. The boolean reports whether an instance was
	// found; when false the caller falls back to the native path.
	SetEditorValue(ctx context.Context, loc schemas.Locator, value string) (bool, error)

	// SelectOption picks a native select option by value.
	SelectOption(ctx context.Context, loc schemas.Locator, value string) error

	// Click dispatches a realistic mousedown, mouseup, click burst.
	Click(ctx context.Context, loc schemas.Locator) error

	// DispatchChange fires a bubbling change event on the element, telling
	// widgets that track their trigger node a selection was committed.
	DispatchChange(ctx context.Context, loc schemas.Locator) error

	// PressEscape sends Escape to the focused element, closing any open
	// floating panel.
	PressEscape(ctx context.Context) error

	// SetFiles attaches file payloads to a file input.
	SetFiles(ctx context.Context, loc schemas.Locator, files []valuestore.FilePayload) error

	// Sleep pauses without blocking past context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}
