package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/errors"
)

const (
	defaultCapacityUnits = 10
	defaultMaxAttempts   = 10
	defaultInitialDelay  = 200 * time.Millisecond
	defaultMaxDelay      = 5 * time.Second
)

// TableOptions controls table creation performed by EnsureTable.
// Zero values are replaced with defaults.
type TableOptions struct {
	ReadCapacity  int64  // provisioned read capacity units, default 10
	WriteCapacity int64  // provisioned write capacity units, default 10
	TTLAttribute  string // time to live attribute, default "expires_at"

	// MaxAttempts is the number of times the table status is checked
	// while waiting for a new table to become active. The delay between
	// checks starts at InitialDelay and doubles up to MaxDelay.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	Logger hclog.Logger
}

func (opts TableOptions) withDefaults() TableOptions {
	if opts.ReadCapacity <= 0 {
		opts.ReadCapacity = defaultCapacityUnits
	}
	if opts.WriteCapacity <= 0 {
		opts.WriteCapacity = defaultCapacityUnits
	}
	if opts.TTLAttribute == "" {
		opts.TTLAttribute = expiresAtAttribute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return opts
}

// delay returns the wait before the status check following attempt,
// where attempt counts from zero.
func (opts TableOptions) delay(attempt int) time.Duration {
	d := opts.InitialDelay
	for i := 0; i < attempt && d < opts.MaxDelay; i++ {
		d *= 2
	}
	if d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	return d
}

// EnsureTable creates the session table if it does not already exist,
// waits for it to become active, and then enables time to live on the
// expiry attribute if it is not already enabled.
//
// EnsureTable is idempotent, and can be called concurrently by multiple
// processes: if another caller creates the table first, EnsureTable waits
// for that table instead. Any failure is returned as a *storage.ProvisionError.
func EnsureTable(ctx context.Context, api API, tableName string, opts TableOptions) error {
	opts = opts.withDefaults()
	logger := opts.Logger.With("table", tableName)

	exists, err := tableExists(ctx, api, tableName)
	if err != nil {
		return provisionError(tableName, errors.Wrap(err, "cannot list tables"))
	}
	if !exists {
		if err := createTable(ctx, api, tableName, opts); err != nil {
			return provisionError(tableName, err)
		}
	}

	// an existing table may have been created moments ago by another process
	if err := waitUntilActive(ctx, api, tableName, opts); err != nil {
		return provisionError(tableName, err)
	}
	if err := enableTimeToLive(ctx, api, tableName, opts.TTLAttribute); err != nil {
		return provisionError(tableName, err)
	}
	logger.Debug("table is active", "ttl_attribute", opts.TTLAttribute)
	return nil
}

func createTable(ctx context.Context, api API, tableName string, opts TableOptions) error {
	logger := opts.Logger.With("table", tableName)
	logger.Info("creating table", "read_capacity", opts.ReadCapacity, "write_capacity", opts.WriteCapacity)
	_, err := api.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(keyAttribute),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(keyAttribute),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(opts.ReadCapacity),
			WriteCapacityUnits: aws.Int64(opts.WriteCapacity),
		},
		TableName: aws.String(tableName),
	})
	if err != nil {
		if !hasErrorCode(err, dynamodb.ErrCodeResourceInUseException) {
			return errors.Wrap(err, "unable to create dynamodb table")
		}
		// another caller got there first
		logger.Debug("table is already being created")
	}
	return nil
}

func provisionError(tableName string, err error) error {
	return &storage.ProvisionError{Table: tableName, Err: err}
}

func tableExists(ctx context.Context, api API, tableName string) (bool, error) {
	var found bool
	err := api.ListTablesPagesWithContext(ctx, &dynamodb.ListTablesInput{},
		func(page *dynamodb.ListTablesOutput, lastPage bool) bool {
			for _, name := range page.TableNames {
				if aws.StringValue(name) == tableName {
					found = true
					return false
				}
			}
			return true
		})
	return found, err
}

func waitUntilActive(ctx context.Context, api API, tableName string, opts TableOptions) error {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(opts.delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		output, err := api.DescribeTableWithContext(ctx, input)
		if err != nil {
			if hasErrorCode(err, dynamodb.ErrCodeResourceNotFoundException) {
				// a table being created is not always visible straight away
				continue
			}
			return errors.Wrap(err, "cannot describe table")
		}
		if output.Table != nil && aws.StringValue(output.Table.TableStatus) == dynamodb.TableStatusActive {
			return nil
		}
	}
	return errors.New("table did not become active").With("attempts", opts.MaxAttempts)
}

func enableTimeToLive(ctx context.Context, api API, tableName string, attributeName string) error {
	enabled, err := timeToLiveEnabled(ctx, api, tableName, attributeName)
	if err != nil {
		return err
	}
	if enabled {
		return nil
	}
	_, err = api.UpdateTimeToLiveWithContext(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &dynamodb.TimeToLiveSpecification{
			AttributeName: aws.String(attributeName),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		// a concurrent caller may have enabled it since the check above
		enabled, derr := timeToLiveEnabled(ctx, api, tableName, attributeName)
		if derr != nil {
			return derr
		}
		if enabled {
			return nil
		}
		return errors.Wrap(err, "unable to set time to live").With("attribute", attributeName)
	}
	return nil
}

// timeToLiveEnabled reports whether time to live is enabled, or being enabled,
// for attributeName. A table has at most one time to live attribute, so it is
// an error if another attribute has it.
func timeToLiveEnabled(ctx context.Context, api API, tableName string, attributeName string) (bool, error) {
	output, err := api.DescribeTimeToLiveWithContext(ctx, &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return false, errors.Wrap(err, "cannot describe time to live")
	}
	desc := output.TimeToLiveDescription
	if desc == nil {
		return false, nil
	}
	switch aws.StringValue(desc.TimeToLiveStatus) {
	case dynamodb.TimeToLiveStatusEnabled, dynamodb.TimeToLiveStatusEnabling:
		if got := aws.StringValue(desc.AttributeName); got != attributeName {
			return false, errors.New("time to live is enabled on another attribute").With(
				"attribute", got,
				"want", attributeName,
			)
		}
		return true, nil
	}
	return false, nil
}
