package ops

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// accessTokenResponse is the wire shape of a successful authentication,
// grounded on the original SDK's AccessTokenObject.
type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"date_expires"`
}

// userResponse is the wire shape of GET /v1/me.
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   struct {
		Filename     string `json:"filename"`
		Original     string `json:"original"`
		Thumb50x50   string `json:"thumb_50x50"`
		Thumb100x100 string `json:"thumb_100x100"`
	} `json:"avatar"`
}

func (u userResponse) toProfile() types.UserProfile {
	return types.UserProfile{
		ID:       types.UserID(u.ID),
		Username: u.Username,
		Avatar: types.AvatarURLs{
			Filename:     u.Avatar.Filename,
			Original:     u.Avatar.Original,
			Thumb50x50:   u.Avatar.Thumb50x50,
			Thumb100x100: u.Avatar.Thumb100x100,
		},
	}
}

// RequestEmailAuthCode asks the server to send a one-time security code to
// emailAddress, the first half of the email login flow.
func (o *Ops) RequestEmailAuthCode(ctx context.Context, emailAddress string) error {
	req := transport.NewRequest(transport.POST, "/v1/oauth/emailrequest").
		WithBody([]byte("email=" + emailAddress))
	_, err := o.client.Send(ctx, req)
	return err
}

// AuthenticateUserByEmailCode exchanges a security code previously sent to
// the user's email address for an access token, completing the email login
// flow.
func (o *Ops) AuthenticateUserByEmailCode(ctx context.Context, code string) error {
	req := transport.NewRequest(transport.POST, "/v1/oauth/emailexchange").
		WithBody([]byte("security_code=" + code))
	return o.exchangeAndAdoptSession(ctx, req)
}

// externalProvider identifies one of the external identity providers the
// original SDK exposes a dedicated entry point for, each mapping to the
// same generic external-auth request shape with a provider-specific path
// and payload field name.
type externalProvider struct {
	path     string
	tokenKey string
}

var (
	ProviderApple         = externalProvider{"/v1/external/apple", "id_token"}
	ProviderDiscord       = externalProvider{"/v1/external/discordauth", "discord_token"}
	ProviderEpic          = externalProvider{"/v1/external/epicgames", "epic_token"}
	ProviderGOG           = externalProvider{"/v1/external/galaxyauth", "appdata"}
	ProviderGoogleIDToken = externalProvider{"/v1/external/googleauth", "id_token"}
	ProviderOculus        = externalProvider{"/v1/external/oculusauth", "nonce"}
	ProviderOpenID        = externalProvider{"/v1/external/openidauth", "id_token"}
	ProviderPSN           = externalProvider{"/v1/external/psnauth", "auth_code"}
	ProviderXboxLive      = externalProvider{"/v1/external/xboxliveauth", "xbox_token"}
)

// AuthenticateUserByProvider authenticates via an external identity
// provider, matching one of the original SDK's per-provider entry points
// (AuthenticateUserByApple/ByDiscord/ByEpic/...): each is a thin wrapper
// around the same generic external-auth composed operation, substituting
// the provider's own request path and token field name. email is optional
// (nil when the provider's own account already carries a verified email).
func (o *Ops) AuthenticateUserByProvider(ctx context.Context, provider externalProvider, token string, email *string, termsAgreed bool) error {
	form := provider.tokenKey + "=" + token
	if email != nil {
		form += "&email=" + *email
	}
	if termsAgreed {
		form += "&terms_agreed=true"
	}
	req := transport.NewRequest(transport.POST, provider.path).WithBody([]byte(form))
	return o.exchangeAndAdoptSession(ctx, req)
}

// exchangeAndAdoptSession performs authReq, expecting an access-token
// response, then fetches the authenticated user's profile and the terms of
// use concurrently (bounded errgroup, since neither result depends on the
// other) before adopting both into the session — mirroring the original
// SDK's AuthenticateUserExternalOp, which always follows a token exchange
// with a GetAuthenticatedUser call before completing.
func (o *Ops) exchangeAndAdoptSession(ctx context.Context, authReq transport.Request) error {
	resp, err := o.client.Send(ctx, authReq)
	if err != nil {
		return err
	}
	var token accessTokenResponse
	if err := decodeJSON(resp.Body.Bytes(), &token); err != nil {
		return err
	}

	var (
		profile types.UserProfile
		terms   string
		mu      sync.Mutex
	)
	eg := new(errgroup.Group)
	eg.SetLimit(2)
	eg.Go(func() error {
		p, err := o.fetchAuthenticatedUser(ctx, token.AccessToken)
		if err != nil {
			return err
		}
		mu.Lock()
		profile = p
		mu.Unlock()
		return nil
	})
	eg.Go(func() error {
		t, err := o.fetchTermsOfUse(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		terms = t
		mu.Unlock()
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	_ = terms // surfaced to the caller via GetTermsOfUse, not stored on the session

	o.session.SetUser(profile.ID, types.OAuthToken{Token: token.AccessToken, Expiry: token.ExpiresAt, Status: types.OAuthValid}, profile)
	return nil
}

func (o *Ops) fetchAuthenticatedUser(ctx context.Context, tokenOverride string) (types.UserProfile, error) {
	req := transport.NewRequest(transport.GET, "/v1/me")
	if tokenOverride != "" {
		req = req.WithHeader("Authorization", "Bearer "+tokenOverride)
	}
	resp, err := o.client.Send(ctx, req)
	if err != nil {
		return types.UserProfile{}, err
	}
	var wire userResponse
	if err := decodeJSON(resp.Body.Bytes(), &wire); err != nil {
		return types.UserProfile{}, err
	}
	return wire.toProfile(), nil
}

// GetTermsOfUse fetches the current terms-of-use text the host must
// present before a user agrees to authenticate, supplementing the
// original's dedicated ModioGetTermsOfUseOp that the distilled
// specification left out.
func (o *Ops) GetTermsOfUse(ctx context.Context) (string, error) {
	return o.fetchTermsOfUse(ctx)
}

func (o *Ops) fetchTermsOfUse(ctx context.Context) (string, error) {
	req := transport.NewRequest(transport.GET, "/v1/authenticate/terms")
	resp, err := o.client.Send(ctx, req)
	if err != nil {
		return "", err
	}
	return string(resp.Body.Bytes()), nil
}
