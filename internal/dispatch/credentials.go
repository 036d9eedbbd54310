package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/horsebet/keiba-autovote/internal/vote"
)

// CredentialStore carrega as credenciais de portal do perfil do usuário.
// user_profiles guarda cada conjunto como JSONB; ausência do campo significa
// que o usuário nunca configurou aquele portal.
type CredentialStore struct{ db *sql.DB }

func NewCredentialStore(db *sql.DB) *CredentialStore { return &CredentialStore{db: db} }

type profileCredentials struct {
	IPAT *struct {
		SubscriberID string `json:"inetId"`
		UserCode     string `json:"userId"`
		Password     string `json:"password"`
		PIN          string `json:"pars"`
	} `json:"ipat,omitempty"`
	SPAT4 *struct {
		MemberNumber string `json:"memberNumber"`
		MemberID     string `json:"memberId"`
		SecretCode   string `json:"secretNumber"`
	} `json:"spat4,omitempty"`
}

func (c *CredentialStore) load(ctx context.Context, userID string) (*profileCredentials, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT COALESCE(vote_credentials,'{}') FROM user_profiles WHERE user_id=$1`, userID).
		Scan(&raw)
	if err != nil {
		return nil, err
	}
	var pc profileCredentials
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("decode credentials for user %s: %w", userID, err)
	}
	return &pc, nil
}

// IPAT devolve as credenciais IPAT do usuário; erro quando não configuradas.
func (c *CredentialStore) IPAT(ctx context.Context, userID string) (vote.IPATCredentials, error) {
	pc, err := c.load(ctx, userID)
	if err != nil {
		return vote.IPATCredentials{}, err
	}
	if pc.IPAT == nil {
		return vote.IPATCredentials{}, fmt.Errorf("user %s has no ipat credentials", userID)
	}
	return vote.IPATCredentials{
		SubscriberID: pc.IPAT.SubscriberID,
		UserCode:     pc.IPAT.UserCode,
		Password:     pc.IPAT.Password,
		PIN:          pc.IPAT.PIN,
	}, nil
}

// SPAT4 devolve as credenciais SPAT4 do usuário; erro quando não configuradas.
func (c *CredentialStore) SPAT4(ctx context.Context, userID string) (vote.SPAT4Credentials, error) {
	pc, err := c.load(ctx, userID)
	if err != nil {
		return vote.SPAT4Credentials{}, err
	}
	if pc.SPAT4 == nil {
		return vote.SPAT4Credentials{}, fmt.Errorf("user %s has no spat4 credentials", userID)
	}
	return vote.SPAT4Credentials{
		MemberNumber: pc.SPAT4.MemberNumber,
		MemberID:     pc.SPAT4.MemberID,
		SecretCode:   pc.SPAT4.SecretCode,
	}, nil
}
