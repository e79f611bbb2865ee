// Package identity establishes the opaque per-browser identity and its
// opt-in flag. Both live in client-held cookies; nothing is stored server-side.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultIDCookie   = "PushNotifyDocuSignID"
	DefaultFlagCookie = "PushNotifyDocuSign"
	DefaultMaxAge     = 365 * 24 * time.Hour

	// minIDLength is the length an incoming token must exceed to be reused.
	minIDLength = 5

	flagOn  = "yes"
	flagOff = "no"
)

// CookieJar is the request/response cookie boundary. *gin.Context satisfies it.
type CookieJar interface {
	Cookie(name string) (string, error)
	SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool)
}

// Device is the identity of one browser instance for the current request.
type Device struct {
	ID string
	// OptIn is the effective consent for this request.
	OptIn bool
	// Fresh is true only for the request in which ID was minted.
	Fresh bool
}

// Options configures the cookies written by a Manager.
type Options struct {
	Salt       string
	IDCookie   string
	FlagCookie string
	MaxAge     time.Duration
	Path       string
	Domain     string
	Secure     bool
}

// Manager establishes device identities from request cookies.
type Manager struct {
	opts    Options
	newUUID func() uuid.UUID
}

// NewManager fills unset options with defaults.
func NewManager(opts Options) *Manager {
	if opts.IDCookie == "" {
		opts.IDCookie = DefaultIDCookie
	}
	if opts.FlagCookie == "" {
		opts.FlagCookie = DefaultFlagCookie
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Manager{opts: opts, newUUID: uuid.New}
}

// Establish reuses the identity cookie when it carries a token longer than
// five characters, otherwise mints a new token and sets the cookie. A freshly
// minted identity never counts as opted in, whatever the flag cookie says.
func (m *Manager) Establish(jar CookieJar) Device {
	dev := Device{}
	if id, err := jar.Cookie(m.opts.IDCookie); err == nil && len(id) > minIDLength {
		dev.ID = id
	} else {
		dev.ID = m.mint()
		dev.Fresh = true
		m.set(jar, m.opts.IDCookie, dev.ID)
	}

	flag, err := jar.Cookie(m.opts.FlagCookie)
	dev.OptIn = err == nil && flag == flagOn && !dev.Fresh
	return dev
}

// SetOptIn persists the opt-in flag cookie as "yes" or "no".
func (m *Manager) SetOptIn(jar CookieJar, on bool) {
	value := flagOff
	if on {
		value = flagOn
	}
	m.set(jar, m.opts.FlagCookie, value)
}

func (m *Manager) mint() string {
	id := m.newUUID()
	h := sha256.New()
	h.Write([]byte(m.opts.Salt))
	h.Write(id[:])
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) set(jar CookieJar, name, value string) {
	jar.SetCookie(name, value, int(m.opts.MaxAge/time.Second), m.opts.Path, m.opts.Domain, m.opts.Secure, false)
}
