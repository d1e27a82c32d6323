package dynamodbstore

import (
	"github.com/aws/aws-sdk-go/aws/client"
	awsdynamodb "github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/jjeffery/ddbsessions/sessionstore"
	"github.com/jjeffery/ddbsessions/storage/dynamodb"
)

// New creates a new session store backed by an AWS DynamoDB table. Access to the
// DynamoDB table is provided by api, which is usually a *dynamodb.DynamoDB, and
// tableName. Options describe the session cookie.
func New(api dynamodb.API, tableName string, options sessionstore.Options) *sessionstore.Store {
	db := dynamodb.New(api, tableName)
	db.Logger = options.Logger
	return sessionstore.New(db, options)
}

// NewFromConfig creates a new session store backed by an AWS DynamoDB table,
// creating the DynamoDB client from an AWS session.
func NewFromConfig(p client.ConfigProvider, tableName string, options sessionstore.Options) *sessionstore.Store {
	return New(awsdynamodb.New(p), tableName, options)
}
