package identity

import (
	"context"
	"fmt"

	dErrors "roster/pkg/domain-errors"
)

// AccountLister pages through every account the provider knows.
type AccountLister interface {
	ListAccounts(ctx context.Context, pageToken string) (*Page, error)
}

// DrainAccounts walks every page. It fails if the provider hands back a token it has
// already returned, which would otherwise loop forever.
func DrainAccounts(ctx context.Context, lister AccountLister) ([]Account, error) {
	var (
		out   []Account
		token string
		seen  = make(map[string]struct{})
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := lister.ListAccounts(ctx, token)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Accounts...)
		if page.NextPageToken == "" {
			return out, nil
		}
		if _, dup := seen[page.NextPageToken]; dup {
			return nil, fmt.Errorf("identity provider repeated page token %q", page.NextPageToken)
		}
		seen[page.NextPageToken] = struct{}{}
		token = page.NextPageToken
	}
}

// FindAccountByEmail walks the provider's accounts for one whose email matches,
// ignoring case and surrounding space. No match is CodeNotFound.
func FindAccountByEmail(ctx context.Context, lister AccountLister, email string) (*Account, error) {
	accounts, err := DrainAccounts(ctx, lister)
	if err != nil {
		return nil, err
	}
	want := normalizeEmail(email)
	for i := range accounts {
		if normalizeEmail(accounts[i].Email) == want {
			return &accounts[i], nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no identity account with this email")
}
