package sessionstore

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/errors"
)

const (
	// DefaultCookieName is the cookie name used by Store.Session when
	// Options.CookieName is blank. It is the name used by aiohttp-session,
	// so Go and Python services can share sessions saved in the same table.
	DefaultCookieName = "AIOHTTP_SESSION"

	// maxIDLength is the longest session identity accepted from a cookie.
	maxIDLength = 128
)

// Options configures a Store. The zero value is usable.
type Options struct {
	// CookieName is the cookie name used by Store.Session.
	CookieName string

	// Cookie holds the attributes of the session cookie. Path defaults
	// to "/". HttpOnly is ignored: see DisableHttpOnly. MaxAge is in
	// seconds and also sets how long the session is kept in storage:
	// if it is zero the cookie lasts for the browser session and the
	// stored session expires after IdleTimeout.
	Cookie sessions.Options

	// DisableHttpOnly allows scripts to read the session cookie.
	// Session cookies are HttpOnly unless this is set.
	DisableHttpOnly bool

	// IdleTimeout is how long a session is kept in storage after it was
	// last saved, when Cookie.MaxAge is zero. If IdleTimeout is zero those
	// sessions never expire in storage.
	IdleTimeout time.Duration

	// NewID returns the identity for a new session. Defaults to NewSessionID.
	NewID func() (string, error)

	// Serializer encodes session values. Defaults to JSONSerializer.
	Serializer Serializer

	// Codecs, if not empty, sign and encrypt the identity in the cookie.
	// See CodecsFromSecrets. If empty, the identity is stored in the
	// cookie as is.
	Codecs []securecookie.Codec

	// Logger defaults to a null logger.
	Logger hclog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Store persists sessions to a storage.Provider. It implements the
// sessions.Store interface, and is safe for concurrent use.
type Store struct {
	db      storage.Provider
	options Options
	logger  hclog.Logger

	provisioned    atomic.Bool
	provisionMutex sync.Mutex
}

var _ sessions.Store = (*Store)(nil)

// New creates a new store suitable for persisting sessions. Session
// data is persisted using db and options provides information about
// the session cookies.
func New(db storage.Provider, options Options) *Store {
	if options.CookieName == "" {
		options.CookieName = DefaultCookieName
	}
	options.Cookie.HttpOnly = !options.DisableHttpOnly
	if options.Cookie.Path == "" {
		options.Cookie.Path = "/"
	}
	if options.NewID == nil {
		options.NewID = NewSessionID
	}
	if options.Serializer == nil {
		options.Serializer = JSONSerializer{}
	}
	if options.Logger == nil {
		options.Logger = hclog.NewNullLogger()
	}
	return &Store{
		db:      db,
		options: options,
		logger:  options.Logger,
	}
}

// Session returns the cached session for the cookie named in Options.CookieName.
func (ss *Store) Session(r *http.Request) (*sessions.Session, error) {
	return ss.Get(r, ss.options.CookieName)
}

// Get returns a cached session.
func (ss *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(ss, name)
}

// New loads the session named by the cookie, or creates a new session
// if there is no such cookie or no stored session.
//
// Stored session data that cannot be decoded does not cause an error: the
// session keeps its identity but starts with no values.
//
// Note that New never returns a nil session, even in the case of
// an error, as required by the Registry infrastructure.
func (ss *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(ss, name)
	// make a copy
	options := ss.options.Cookie
	session.Options = &options
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		// no cookie, so no need to access storage
		ss.options.Metrics.load(loadNoCookie)
		return session, nil
	}
	id, ok := ss.decodeCookie(name, c.Value)
	if !ok {
		ss.options.Metrics.load(loadBadCookie)
		return session, nil
	}

	ctx := r.Context()
	if err := ss.provision(ctx); err != nil {
		ss.options.Metrics.failed("load")
		return session, err
	}
	key := storeKey(name, id)
	item, err := ss.db.Fetch(ctx, key)
	if err != nil {
		ss.options.Metrics.failed("load")
		return session, err
	}
	if item == nil {
		// unknown or expired identity
		ss.options.Metrics.load(loadMissing)
		return session, nil
	}

	session.ID = id
	session.IsNew = false // session data exists, so not new
	values, err := ss.options.Serializer.Decode(item.Data)
	if err != nil {
		ss.logger.Warn("discarding session data that cannot be decoded", "key", key, "error", err)
		ss.options.Metrics.load(loadCorrupt)
		return session, nil
	}
	for k, v := range values {
		session.Values[k] = v
	}
	ss.options.Metrics.load(loadExisting)
	return session, nil
}

// Save persists session to the underlying storage provider, and sets
// the session cookie in the response.
//
// A session without an identity is given a new one. A session whose
// Options.MaxAge is negative, or which has had all of its values removed,
// is invalidated: the cookie is deleted, and the stored session is
// emptied and left to expire.
func (ss *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if err := ss.provision(ctx); err != nil {
		ss.options.Metrics.failed("save")
		return err
	}

	options := session.Options
	if options == nil {
		options = &ss.options.Cookie
	}
	now := nowFunc()
	var expiresAt time.Time
	switch {
	case options.MaxAge > 0:
		expiresAt = now.Add(time.Duration(options.MaxAge) * time.Second)
	case options.MaxAge == 0 && ss.options.IdleTimeout > 0:
		expiresAt = now.Add(ss.options.IdleTimeout)
	}

	var action string
	switch {
	case session.ID == "":
		id, err := ss.options.NewID()
		if err != nil {
			ss.options.Metrics.failed("save")
			return errors.Wrap(err, "cannot generate session id")
		}
		if id == "" {
			ss.options.Metrics.failed("save")
			return errors.New("cannot generate session id: empty id")
		}
		session.ID = id
		action = saveSet
		if options.MaxAge < 0 {
			// invalidated before it was ever saved
			for k := range session.Values {
				delete(session.Values, k)
			}
			expiresAt = now
			action = saveExpire
		}
	case options.MaxAge < 0 || len(session.Values) == 0:
		for k := range session.Values {
			delete(session.Values, k)
		}
		expiresAt = now
		action = saveExpire
	default:
		action = saveRefresh
	}

	data, err := ss.options.Serializer.Encode(stringValues(session.Values))
	if err != nil {
		ss.options.Metrics.failed("save")
		return errors.Wrap(err, "cannot encode session values").With("name", session.Name())
	}
	key := storeKey(session.Name(), session.ID)
	if len(key) > storage.MaxKeyLength {
		ss.options.Metrics.failed("save")
		return errors.New("session key too long").With("key", key)
	}
	item := storage.Item{
		Key:       key,
		Data:      data,
		ExpiresAt: expiresAt,
	}
	if err := ss.db.Save(ctx, &item); err != nil {
		ss.options.Metrics.failed("save")
		return err
	}

	var cookie *http.Cookie
	if action == saveExpire {
		cookie = sessions.NewCookie(session.Name(), "", options)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0).UTC()
	} else {
		value, err := ss.encodeCookie(session.Name(), session.ID)
		if err != nil {
			ss.options.Metrics.failed("save")
			return err
		}
		cookie = sessions.NewCookie(session.Name(), value, options)
	}
	http.SetCookie(w, cookie)
	ss.options.Metrics.save(action)
	return nil
}

// provision calls the provider's Provision method the first time it is
// needed by this store. A failure is not remembered, so the next call
// tries again.
func (ss *Store) provision(ctx context.Context) error {
	if ss.provisioned.Load() {
		return nil
	}
	provisioner, ok := ss.db.(storage.Provisioner)
	if !ok {
		ss.provisioned.Store(true)
		return nil
	}

	ss.provisionMutex.Lock()
	defer ss.provisionMutex.Unlock()
	if ss.provisioned.Load() {
		return nil
	}
	if err := provisioner.Provision(ctx); err != nil {
		ss.logger.Error("cannot provision session storage", "error", err)
		return err
	}
	ss.provisioned.Store(true)
	return nil
}

func (ss *Store) decodeCookie(name, value string) (id string, ok bool) {
	if len(ss.options.Codecs) == 0 {
		id = value
	} else if err := securecookie.DecodeMulti(name, value, &id, ss.options.Codecs...); err != nil {
		ss.logger.Debug("ignoring session cookie", "name", name, "error", err)
		return "", false
	}
	if id == "" || len(id) > maxIDLength {
		return "", false
	}
	return id, true
}

func (ss *Store) encodeCookie(name, id string) (string, error) {
	if len(ss.options.Codecs) == 0 {
		return id, nil
	}
	value, err := securecookie.EncodeMulti(name, id, ss.options.Codecs...)
	if err != nil {
		return "", errors.Wrap(err, "cannot encode cookie").With("name", name)
	}
	return value, nil
}

// stringValues returns the session values that have string keys.
func stringValues(values map[interface{}]interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(values))
	for k, v := range values {
		if ks, ok := k.(string); ok {
			m[ks] = v
		}
	}
	return m
}
