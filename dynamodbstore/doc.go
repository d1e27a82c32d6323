// Package dynamodbstore provides session storage using an AWS DynamoDB table.
// The session store is compatible with Gorilla sessions (github.com/gorilla/sessions),
// and shares its sessions with aiohttp-session applications that use the same table.
//
// The DynamoDB table has the following structure:
//
//	Hash Key: name="key" type="S"
//	Sort Key: none
//	Time to Live Attribute: name="expires_at"
//
// The table is created the first time a session is loaded or saved, if it
// does not already exist. Obsolete session data is automatically purged from
// the table through the use of the DynamoDB time to live attribute.
package dynamodbstore
