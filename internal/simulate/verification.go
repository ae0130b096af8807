package simulate

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
)

// ErrMismatch reports a finished game that differs from its ledger.
var ErrMismatch = errors.New("game state mismatch")

// verifyGames checks every played game: the snapshot must be final and
// agree with the ledger on events and score, and the CSV export must
// carry one row per event.
func verifyGames(ctx context.Context, client *HTTPClient, scripts []Script, ledgers []*ledger, stats *Stats) error {
	logger.Get().Info(ctx, "verifying games")

	var errs []error
	for i, s := range scripts {
		l := ledgers[i]
		if l == nil {
			continue
		}
		if err := verifyGame(ctx, client, s.Game.GameID, l); err != nil {
			stats.Mismatches++
			errs = append(errs, err)
			logger.Get().Warn(ctx, "game does not match", logger.String("game", s.Game.GameID), logger.Error(err))
			continue
		}
		stats.GamesVerified++
	}
	if stats.GamesVerified == 0 && len(errs) == 0 {
		return fmt.Errorf("no games to verify")
	}
	return errors.Join(errs...)
}

func verifyGame(ctx context.Context, client *HTTPClient, gameID string, l *ledger) error {
	base := "/sessions/" + url.PathEscape(gameID)

	status, body, err := client.Get(ctx, base)
	if err != nil {
		return err
	}
	if err := expectStatus(status, body, http.StatusOK); err != nil {
		return err
	}
	var v SessionView
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	snap := v.Snapshot

	switch {
	case snap.Status != model.StatusFinal:
		return fmt.Errorf("%w: status %q", ErrMismatch, snap.Status)
	case len(snap.Events) != l.count():
		return fmt.Errorf("%w: %d events, expected %d", ErrMismatch, len(snap.Events), l.count())
	case snap.Score != l.score():
		return fmt.Errorf("%w: score %+v, expected %+v", ErrMismatch, snap.Score, l.score())
	case snap.OpenShifts() != 0:
		return fmt.Errorf("%w: %d shifts still open", ErrMismatch, snap.OpenShifts())
	}

	status, body, err = client.Get(ctx, base+"/export?kind=events")
	if err != nil {
		return err
	}
	if err := expectStatus(status, body, http.StatusOK); err != nil {
		return err
	}
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return fmt.Errorf("decode export: %w", err)
	}
	if rows := len(records) - 1; rows != l.count() {
		return fmt.Errorf("%w: export has %d rows, expected %d", ErrMismatch, rows, l.count())
	}
	return nil
}
