package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/errors"
)

const (
	keyAttribute       = "key"
	dataAttribute      = "session_data"
	expiresAtAttribute = "expires_at"
)

// API is the subset of the DynamoDB client used by this package.
// It is satisfied by *dynamodb.DynamoDB.
type API interface {
	ListTablesPagesWithContext(ctx aws.Context, input *dynamodb.ListTablesInput, fn func(*dynamodb.ListTablesOutput, bool) bool, opts ...request.Option) error
	CreateTableWithContext(ctx aws.Context, input *dynamodb.CreateTableInput, opts ...request.Option) (*dynamodb.CreateTableOutput, error)
	DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error)
	DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error)
	DescribeTimeToLiveWithContext(ctx aws.Context, input *dynamodb.DescribeTimeToLiveInput, opts ...request.Option) (*dynamodb.DescribeTimeToLiveOutput, error)
	UpdateTimeToLiveWithContext(ctx aws.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...request.Option) (*dynamodb.UpdateTimeToLiveOutput, error)
	GetItemWithContext(ctx aws.Context, input *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error)
	PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error)
}

var _ API = (*dynamodb.DynamoDB)(nil)

// record represents a session item in the DynamoDB table
type record struct {
	Key         string `dynamodbav:"key"`
	SessionData string `dynamodbav:"session_data"`
	ExpiresAt   int64  `dynamodbav:"expires_at,omitempty"`
}

// Provider provides storage for sessions using an AWS DynamoDB table.
// It implements the storage.Provider and storage.Provisioner interfaces.
//
// The structure of the DynamoDB table is described in the package
// comment.
type Provider struct {
	// Table controls how the table is created by Provision.
	Table TableOptions

	// Logger receives provisioning progress. Defaults to a null logger.
	Logger hclog.Logger

	// TimeNow is used to decide whether an item has expired.
	TimeNow func() time.Time

	api       API
	tableName string
}

var (
	_ storage.Provider    = (*Provider)(nil)
	_ storage.Provisioner = (*Provider)(nil)
)

// New creates a new DynamoDB Provider given the DynamoDB client and the table name.
func New(api API, tableName string) *Provider {
	return &Provider{
		TimeNow:   time.Now,
		api:       api,
		tableName: tableName,
	}
}

// TableName returns the name of the DynamoDB table.
func (db *Provider) TableName() string {
	return db.tableName
}

// Provision implements the storage.Provisioner interface. It creates the
// table and enables time to live if the table does not already exist.
func (db *Provider) Provision(ctx context.Context) error {
	opts := db.Table
	if opts.Logger == nil {
		opts.Logger = db.Logger
	}
	return EnsureTable(ctx, db.api, db.tableName, opts)
}

// DropTable deletes the DynamoDB table.
func (db *Provider) DropTable(ctx context.Context) error {
	_, err := db.api.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(db.tableName),
	})

	if err != nil {
		if hasErrorCode(err, dynamodb.ErrCodeResourceNotFoundException) {
			// table not found is not considered an error
			err = nil
		}
	}
	if err != nil {
		return errors.Wrap(err, "unable to delete dynamodb table").With("table", db.tableName)
	}

	return nil
}

// Fetch implements the storage.Provider interface.
func (db *Provider) Fetch(ctx context.Context, key string) (*storage.Item, error) {
	errors := errors.With("key", key, "table", db.tableName)
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(db.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			keyAttribute: {
				S: aws.String(key),
			},
		},
	}
	output, err := db.api.GetItemWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get item")
	}
	if len(output.Item) == 0 {
		// not found
		return nil, nil
	}
	var rec record
	if err := dynamodbattribute.UnmarshalMap(output.Item, &rec); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal item")
	}
	item := &storage.Item{
		Key:  rec.Key,
		Data: rec.SessionData,
	}
	if rec.ExpiresAt != 0 {
		item.ExpiresAt = time.Unix(rec.ExpiresAt, 0)
	}
	// DynamoDB deletes expired items some time after they expire
	if item.Expired(db.now()) {
		return nil, nil
	}
	return item, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, item *storage.Item) error {
	errors := errors.With("key", item.Key, "table", db.tableName)
	rec := record{
		Key:         item.Key,
		SessionData: item.Data,
	}
	if !item.ExpiresAt.IsZero() {
		rec.ExpiresAt = item.ExpiresAt.Unix()
	}
	av, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "failed to convert to dynamodb attribute value")
	}
	input := &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(db.tableName),
	}
	if _, err := db.api.PutItemWithContext(ctx, input); err != nil {
		return errors.Wrap(err, "unable to save item in dynamodb")
	}
	return nil
}

func (db *Provider) now() time.Time {
	if db.TimeNow == nil {
		return time.Now()
	}
	return db.TimeNow()
}

func hasErrorCode(err error, code string) bool {
	if coder, ok := err.(interface{ Code() string }); ok {
		return coder.Code() == code
	}
	return false
}
