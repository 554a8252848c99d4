package cli

import (
	"context"
	"fmt"
	"os"
	osuser "os/user"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/propsync/propsync/internal/arbiter"
	"github.com/propsync/propsync/internal/audit"
	"github.com/propsync/propsync/internal/auth"
	"github.com/propsync/propsync/internal/marker"
	"github.com/propsync/propsync/internal/session"
	"github.com/propsync/propsync/internal/store"
	"github.com/propsync/propsync/pkg/color"
	"github.com/propsync/propsync/pkg/config"
	"github.com/propsync/propsync/pkg/fsutil"
	"github.com/propsync/propsync/pkg/logging"
	"github.com/propsync/propsync/pkg/model"
)

// env bundles the wired components every command needs: config, the
// shared store, the user registry, the marker, and the arbiter.
type env struct {
	cfg    *config.Config
	st     *store.Store
	users  *auth.Users
	mk     *marker.File
	arb    *arbiter.Arbiter
	audits *audit.StoreRecorder
	log    *logging.Logger
}

func (e *env) close() {
	e.st.Close()
}

// effectiveConfigPath resolves --config, then $PROPSYNC_CONFIG, then the
// per-user default.
func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("PROPSYNC_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "propsync.yaml"
	}
	return filepath.Join(dir, "propsync", "config.yaml")
}

func openEnv() (*env, error) {
	cfg, err := config.Load(effectiveConfigPath())
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level))
	log.SetFormat(logging.Format(cfg.Logging.Format))
	logging.SetGlobal(log)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	users := auth.NewUsers(st.DB())
	mk := marker.NewFile(cfg.Store.Marker(), log)
	recorder := audit.NewStoreRecorder(st.DB())
	arb := arbiter.New(session.New(st.DB()), mk, users, recorder, cfg.LockPolicy(), arbiter.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff.Std(),
		Logger:      log,
	})

	return &env{cfg: cfg, st: st, users: users, mk: mk, arb: arb, audits: recorder, log: log}, nil
}

// requireEnv opens the environment or exits with an error.
func requireEnv() *env {
	e, err := openEnv()
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	return e
}

// effectiveUsername resolves --user, then $PROPSYNC_USER, then the OS user.
func effectiveUsername() string {
	if userFlag != "" {
		return userFlag
	}
	if u := os.Getenv("PROPSYNC_USER"); u != "" {
		return u
	}
	if u, err := osuser.Current(); err == nil {
		return u.Username
	}
	return ""
}

// requireIdentity resolves the acting identity against the user registry,
// or exits with an error.
func requireIdentity(ctx context.Context, e *env) model.Identity {
	name := effectiveUsername()
	if name == "" {
		fmtErr("no acting user (pass --user or set PROPSYNC_USER)")
		os.Exit(1)
	}
	id, err := e.users.Identity(ctx, name)
	if err != nil {
		fmtErr("resolve user %q: %v (register with 'propsync users add')", name, err)
		os.Exit(1)
	}
	return id
}

// localSession is this client's persisted write-lock session, so acquire
// and release work across separate command invocations.
type localSession struct {
	SessionID string `yaml:"session_id"`
	Username  string `yaml:"username"`
	Machine   string `yaml:"machine"`
}

func localSessionPath() string {
	return effectiveConfigPath() + ".session"
}

func saveLocalSession(sess *model.Session) error {
	data, err := yaml.Marshal(localSession{
		SessionID: sess.SessionID,
		Username:  sess.Username,
		Machine:   sess.MachineID,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	path := localSessionPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return fsutil.AtomicWrite(path, data, 0600)
}

func loadLocalSession() (*localSession, error) {
	data, err := os.ReadFile(localSessionPath())
	if err != nil {
		return nil, err
	}
	var ls localSession
	if err := yaml.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if ls.SessionID == "" {
		return nil, fmt.Errorf("session file has no session id")
	}
	return &ls, nil
}

func clearLocalSession() {
	os.Remove(localSessionPath())
}

func fmtErr(format string, args ...any) {
	prefix := "propsync: "
	if color.Enabled() {
		prefix = color.Error("propsync:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
