// Package sessionstore provides a session store for persistence of HTTP session data.
// The session store is compatible with Gorilla sessions (github.com/gorilla/sessions).
//
// The session cookie carries only the session identity. Session values are
// serialized (as JSON by default) and saved in a storage.Provider under the
// key "<cookie name>_<identity>". Values that cannot be decoded are discarded:
// the request proceeds with an empty session rather than failing.
//
// If the provider needs a backing table, the table is provisioned the first
// time a Store reads or writes session data.
package sessionstore
