package download

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terracol/terracol/internal/model"
	"github.com/terracol/terracol/internal/resilience"
)

// partSuffix marks in-flight transfers. A .part file is never valid state:
// crashed runs leave them behind and the next run overwrites them.
const partSuffix = ".part"

// ManagerOptions configures the download manager.
type ManagerOptions struct {
	// Dir is the raw-tile directory. Created if missing.
	Dir string
	// Verify selects the raw-file validity check (VerifyNone or VerifyMagic).
	Verify string
	// Retry controls the per-tile retry schedule.
	Retry resilience.RetryConfig
}

// Manager ensures raw tiles exist on local storage. Completion state is
// the presence of a valid file at the tile's final path; the rename from
// the temp path is the sole commit point.
type Manager struct {
	client *Client
	opts   ManagerOptions
}

// NewManager creates a manager writing raw tiles under opts.Dir.
func NewManager(client *Client, opts ManagerOptions) (*Manager, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "download: create raw dir")
	}
	if opts.Verify == "" {
		opts.Verify = VerifyMagic
	}
	return &Manager{client: client, opts: opts}, nil
}

// Ensure makes the tile's raw file present and valid, downloading it if
// needed. Returns the local path and whether the file was already there.
func (m *Manager) Ensure(ctx context.Context, tile model.Tile) (string, bool, error) {
	log := zap.L().With(
		zap.String("component", "download"),
		zap.String("tile", tile.ID),
	)

	path := tile.RawPath(m.opts.Dir)
	if ValidRaw(path, m.opts.Verify) {
		// A crashed run may have left a stale temp file next to the
		// valid one.
		_ = os.Remove(path + partSuffix)
		log.Debug("raw tile already present, skipping download", zap.String("path", path))
		return path, true, nil
	}

	cfg := m.opts.Retry
	cfg.OnRetry = resilience.RetryLogger("download", tile.ID)

	log.Info("downloading tile", zap.String("url", tile.URL))
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return m.fetch(ctx, tile, path)
	})
	if err != nil {
		return "", false, m.classify(err, tile)
	}

	log.Info("tile downloaded", zap.String("path", path))
	return path, false, nil
}

// fetch performs one complete transfer attempt: stream to a temp path,
// verify, then atomically rename into place.
func (m *Manager) fetch(ctx context.Context, tile model.Tile, path string) (err error) {
	resp, err := m.client.Get(ctx, tile.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	tmp := path + partSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return &Error{Kind: KindIO, Tile: tile.ID, Err: eris.Wrap(err, "download: create temp file")}
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		// A dropped connection mid-body is worth another attempt.
		return resilience.NewTransientError(eris.Wrap(err, "download: stream body"), 0)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return resilience.NewTransientError(
			eris.Errorf("download: short body: got %d of %d bytes", n, resp.ContentLength), 0)
	}

	if err = f.Sync(); err != nil {
		return &Error{Kind: KindIO, Tile: tile.ID, Err: eris.Wrap(err, "download: sync temp file")}
	}
	if err = f.Close(); err != nil {
		return &Error{Kind: KindIO, Tile: tile.ID, Err: eris.Wrap(err, "download: close temp file")}
	}

	if m.opts.Verify == VerifyMagic && !hasTIFFMagic(tmp) {
		err = resilience.NewTransientError(eris.New("download: payload is not a TIFF"), 0)
		_ = os.Remove(tmp)
		return err
	}

	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &Error{Kind: KindIO, Tile: tile.ID, Err: eris.Wrap(err, "download: commit file")}
	}
	return nil
}

// classify folds whatever the retry loop surfaced into a download Error.
func (m *Manager) classify(err error, tile model.Tile) error {
	if de, ok := AsError(err); ok {
		if de.Tile == "" {
			de.Tile = tile.ID
		}
		return de
	}
	kind := KindIO
	if resilience.IsTransient(err) || errors.Is(err, resilience.ErrCircuitOpen) {
		kind = KindTransient
	}
	return &Error{Kind: kind, Tile: tile.ID, URL: tile.URL, Err: err}
}
