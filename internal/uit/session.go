package uit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIURL = "https://www.uitplus.hpc.mil/uapi/"

	authHeader = "x-uit-auth-token"
)

// Doer is the subset of *http.Client used to reach the gateway.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session carries the credentials for one gateway user. Clients receive it explicitly, so several
// sessions can coexist in one process.
type Session struct {
	ID uuid.UUID

	logger     *zap.Logger
	tracer     trace.Tracer
	apiURL     string
	tokens     oauth2.TokenSource
	httpClient Doer
}

func NewSession(logger *zap.Logger, apiURL string, tokens oauth2.TokenSource, httpClient Doer) *Session {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Session{
		ID:         uuid.New(),
		logger:     logger,
		tracer:     otel.Tracer("uit/session"),
		apiURL:     strings.TrimSuffix(apiURL, "/") + "/",
		tokens:     oauth2.ReuseTokenSource(nil, tokens),
		httpClient: httpClient,
	}
}

// NewStaticSession builds a session from an already issued access token.
func NewStaticSession(logger *zap.Logger, apiURL, token string, httpClient Doer) *Session {
	return NewSession(logger, apiURL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}), httpClient)
}

func (s *Session) authorize(req *http.Request) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	if !token.Valid() {
		return fmt.Errorf("access token is empty or expired")
	}

	req.Header.Set(authHeader, token.AccessToken)
	return nil
}

// Userinfo lists the systems and login nodes available to the session's token.
func (s *Session) Userinfo(ctx context.Context) (Userinfo, error) {
	traceCtx, span := s.tracer.Start(ctx, "Userinfo")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	httpRequest, err := http.NewRequestWithContext(traceCtx, http.MethodGet, s.apiURL+"userinfo", nil)
	if err != nil {
		logger.Error("failed to create http request", zap.Error(err))
		span.RecordError(err)
		return Userinfo{}, err
	}

	if err := s.authorize(httpRequest); err != nil {
		logger.Error("failed to authorize request", zap.Error(err))
		span.RecordError(err)
		return Userinfo{}, err
	}

	response, err := s.httpClient.Do(httpRequest)
	if err != nil {
		logger.Error("failed to perform http request", zap.Error(err))
		span.RecordError(err)
		return Userinfo{}, err
	}
	defer func() {
		if cerr := response.Body.Close(); cerr != nil {
			logger.Error("failed to close response body", zap.Error(cerr))
		}
	}()

	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code: %d", response.StatusCode)
		logger.Error("failed to get userinfo", zap.Error(err))
		span.RecordError(err)
		return Userinfo{}, err
	}

	var userinfoResp userinfoResponse
	err = ParseResponse(traceCtx, response, &userinfoResp)
	if err != nil {
		logger.Error("failed to parse response", zap.Error(err))
		span.RecordError(err)
		return Userinfo{}, err
	}

	logger.Debug("got userinfo", zap.String("username", userinfoResp.Userinfo.Username))
	return userinfoResp.Userinfo, nil
}
