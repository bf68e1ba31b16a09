package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
)

const (
	MsgMissingCredentials = "Please enter both username and password."
	MsgInvalidCredentials = "Invalid username or password."
	MsgInvalidToken       = "Invalid token."
	MsgLoginError         = "Login error. Please try again."
	MsgGenericError       = "An error occurred. Please try again."
	MsgLoginSuccess       = "Login successful."
	MsgAlreadyLoggedIn    = "You are already logged in."

	MsgMissingRegistration = "Please fill in all fields."
	MsgPasswordMismatch    = "Passwords do not match."
	MsgRegisterSuccess     = "Registration successful."
	MsgRegisterInvalid     = "Invalid registration data. Please check your inputs."
)

// AccountAPI is the slice of the REST client the Service needs.
type AccountAPI interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, username, password string) error
}

// SessionLogin accepts a credential once the backend has issued it.
type SessionLogin interface {
	Login(ctx context.Context, token string, user session.UserProfile) error
}

// Service runs the login and registration flows and reports their outcome
// to the user.
type Service struct {
	api      AccountAPI
	session  SessionLogin
	notifier notify.Notifier
	log      logging.Logger
}

func NewService(a AccountAPI, s SessionLogin, n notify.Notifier, log logging.Logger) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{api: a, session: s, notifier: n, log: log}
}

func (s *Service) notify(level notify.Level, msg string) {
	s.notifier.Notify(notify.Notice{Level: level, Message: msg})
}

// Login authenticates against the backend and hands the credential to the
// session. password is wiped before returning.
func (s *Service) Login(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)

	v := &common.Validator{}
	if err := v.Required("username", username).NotEmpty("password", len(password)).Err(); err != nil {
		s.notify(notify.Warning, MsgMissingCredentials)
		return err
	}

	resp, err := s.api.Login(ctx, username, string(password))
	if err != nil {
		switch {
		case errors.Is(err, api.ErrInvalidCredentials):
			s.notify(notify.Error, MsgInvalidCredentials)
		case errors.Is(err, api.ErrInvalidToken):
			s.notify(notify.Error, MsgInvalidToken)
		case errors.Is(err, api.ErrUnavailable):
			s.notify(notify.Error, MsgLoginError)
		default:
			s.notify(notify.Error, MsgGenericError)
		}
		return fmt.Errorf("login error: %w", err)
	}

	user := session.UserProfile{Username: username}
	if resp.User != nil {
		user = *resp.User
		if user.Username == "" {
			user.Username = username
		}
	}

	if err := s.session.Login(ctx, resp.Token, user); err != nil {
		if errors.Is(err, ErrAlreadyAuthenticated) {
			s.notify(notify.Info, MsgAlreadyLoggedIn)
		}
		return err
	}
	s.notify(notify.Success, MsgLoginSuccess)
	return nil
}

// Register creates an account. password and confirm are wiped before
// returning.
func (s *Service) Register(ctx context.Context, username string, password, confirm []byte) error {
	defer common.WipeByteArray(password)
	defer common.WipeByteArray(confirm)

	v := &common.Validator{}
	v.Required("username", username).NotEmpty("password", len(password)).NotEmpty("confirm", len(confirm))
	if err := v.Err(); err != nil {
		s.notify(notify.Warning, MsgMissingRegistration)
		return err
	}
	if err := v.Check(string(password) == string(confirm), "confirm", "does not match").Err(); err != nil {
		s.notify(notify.Error, MsgPasswordMismatch)
		return err
	}

	if err := s.api.Register(ctx, username, string(password)); err != nil {
		var se *api.StatusError
		switch {
		case errors.As(err, &se) && se.Code == http.StatusBadRequest && se.Message != "":
			s.notify(notify.Error, se.Message)
		case errors.As(err, &se) && se.Code == http.StatusBadRequest:
			s.notify(notify.Error, MsgRegisterInvalid)
		default:
			s.notify(notify.Error, MsgGenericError)
		}
		return fmt.Errorf("register error: %w", err)
	}

	s.log.Info(ctx, "registered", "user", username)
	s.notify(notify.Success, MsgRegisterSuccess)
	return nil
}
