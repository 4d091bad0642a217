package artifact

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// MirrorConfig describes an optional FTP destination that receives a copy
// of every written artifact. Mirroring is best-effort: a failed upload is
// logged and the run continues.
type MirrorConfig struct {
	Addr     string // host:port, empty disables mirroring
	User     string
	Password string
	Dir      string // remote directory, created if missing
}

func (c MirrorConfig) Enabled() bool { return c.Addr != "" }

// Mirror uploads artifact files to an FTP server.
type Mirror struct {
	cfg MirrorConfig
	log zerolog.Logger
}

func NewMirror(cfg MirrorConfig, log zerolog.Logger) *Mirror {
	return &Mirror{cfg: cfg, log: log}
}

// Upload copies the local files to the remote directory. Each call dials a
// fresh connection; uploads are rare enough that pooling is not worth the
// stale-connection handling.
func (m *Mirror) Upload(paths ...string) error {
	conn, err := ftp.Dial(m.cfg.Addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("dial ftp %s: %w", m.cfg.Addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(m.cfg.User, m.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	if m.cfg.Dir != "" {
		// MakeDir fails when the directory exists; only the Stor result
		// decides success.
		_ = conn.MakeDir(m.cfg.Dir)
	}

	for _, local := range paths {
		if err := m.uploadOne(conn, local); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) uploadOne(conn *ftp.ServerConn, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	remote := path.Join(m.cfg.Dir, filepath.Base(local))
	if err := conn.Stor(remote, f); err != nil {
		return fmt.Errorf("store %s: %w", remote, err)
	}
	m.log.Debug().Str("remote", remote).Msg("mirrored artifact")
	return nil
}
