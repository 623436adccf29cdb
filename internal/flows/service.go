package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Refresh.VerifyRefresh != nil
}

func (s Service) Login(ctx context.Context, identifier, password string) LoginResult {
	return RunLogin(ctx, identifier, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, subject string) LogoutResult {
	return RunLogout(ctx, subject, s.deps.Logout)
}

func (s Service) LogoutByAccessToken(ctx context.Context, token string) LogoutByAccessResult {
	return RunLogoutByAccessToken(ctx, token, s.deps.Logout)
}
