package sessionstore

// keySeparator separates the cookie name from the session identity in a
// storage key.
const keySeparator = "_"

// storeKey returns the unique key for saving a session to persistent storage
func storeKey(cookieName, id string) string {
	return cookieName + keySeparator + id
}
