// Package dynamodb has a storage provider that uses an AWS DynamoDB table.
//
// The DynamoDB table has the following structure:
//
//  Hash Key: name="key" type="S"
//  Sort Key: none
//  Time to Live Attribute: name="expires_at"
//
// Each item holds the serialized session payload in the "session_data"
// string attribute. The table is created on demand by EnsureTable, which
// also enables the time to live attribute so that DynamoDB purges expired
// sessions without any action from the application.
package dynamodb
