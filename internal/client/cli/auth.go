package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/gatherhall/doorsync/internal/client/repositories/metadata"
	"github.com/gatherhall/doorsync/internal/common"
)

// getToken is an indirection used to facilitate testing.
var getToken = GetToken

// Login prompts for a staff token, installs it on the API client and
// verifies it against the server. The token is persisted locally so a
// device restart mid-shift does not force a re-login.
//
// If the server is unreachable the token is kept anyway: the device can
// queue check-ins offline and the token gets verified on the first sync.
func (a *App) Login(ctx context.Context) error {
	token, err := getToken(os.Stdout)
	if err != nil {
		return err
	}
	if len(token) == 0 {
		log.Println("Empty token, not logged in")
		return nil
	}

	a.apiClient.SetToken(string(token))

	if err := a.apiClient.Ping(ctx); err != nil {
		if errors.Is(err, common.ErrRetryable) {
			log.Println("Server unreachable, token saved for offline use")
			a.setMode(ModeOffline)
		} else {
			log.Printf("Login check failed: %s", err.Error())
		}
	} else {
		log.Println("Login successful")
		a.setMode(ModeOnline)
	}

	if err := a.repos.Metadata.Set(ctx, metadata.KeyStaffToken, token); err != nil {
		log.Printf("Could not persist token: %s", err.Error())
	}
	a.loggedIn = true
	return nil
}

// Logout removes the persisted staff token.
func (a *App) Logout(ctx context.Context) error {
	if err := a.repos.Metadata.Delete(ctx, metadata.KeyStaffToken); err != nil {
		return err
	}
	a.apiClient.SetToken("")
	a.loggedIn = false
	log.Println("Logged out")
	return nil
}
