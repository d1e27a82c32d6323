package testhelper

import (
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// DynamoDB is an in-memory stand-in for the part of the DynamoDB API
// used by the dynamodb storage provider. It is safe for concurrent use.
type DynamoDB struct {
	// ActivateAfter is the number of DescribeTable calls for which a
	// newly created table reports CREATING before it becomes ACTIVE.
	ActivateAfter int

	// NeverActivate keeps newly created tables in the CREATING state.
	NeverActivate bool

	// Err, if not nil, is returned from every GetItem and PutItem call.
	Err error

	mutex  sync.Mutex
	tables map[string]*fakeTable
	calls  map[string]int
}

type fakeTable struct {
	keyAttr   string
	status    string
	describes int
	ttlAttr   string
	ttlStatus string
	items     map[string]map[string]*dynamodb.AttributeValue
}

// NewDynamoDB returns an empty fake DynamoDB service.
func NewDynamoDB() *DynamoDB {
	return &DynamoDB{}
}

// Calls returns the number of times the named operation has been called.
func (db *DynamoDB) Calls(op string) int {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.calls[op]
}

// TableNames returns the names of all tables, sorted.
func (db *DynamoDB) TableNames() []string {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.tableNames()
}

// TimeToLive returns the time to live attribute and status of a table.
func (db *DynamoDB) TimeToLive(tableName string) (attributeName, status string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if tbl := db.tables[tableName]; tbl != nil {
		return tbl.ttlAttr, tbl.ttlStatus
	}
	return "", ""
}

// Item returns a copy of the item stored under key, or nil.
func (db *DynamoDB) Item(tableName, key string) map[string]*dynamodb.AttributeValue {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if tbl := db.tables[tableName]; tbl != nil {
		return copyItem(tbl.items[key])
	}
	return nil
}

func (db *DynamoDB) called(op string) {
	if db.calls == nil {
		db.calls = make(map[string]int)
	}
	db.calls[op]++
}

func (db *DynamoDB) tableNames() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// activeTable returns the named table if it exists and is active.
func (db *DynamoDB) activeTable(tableName *string) (*fakeTable, error) {
	tbl := db.tables[aws.StringValue(tableName)]
	if tbl == nil || tbl.status != dynamodb.TableStatusActive {
		return nil, notFound(tableName)
	}
	return tbl, nil
}

func notFound(tableName *string) error {
	return awserr.New(dynamodb.ErrCodeResourceNotFoundException,
		"Requested resource not found: Table: "+aws.StringValue(tableName)+" not found", nil)
}

func validation(message string) error {
	return awserr.New("ValidationException", message, nil)
}

// ListTablesPagesWithContext returns all table names in a single page.
func (db *DynamoDB) ListTablesPagesWithContext(ctx aws.Context, input *dynamodb.ListTablesInput, fn func(*dynamodb.ListTablesOutput, bool) bool, opts ...request.Option) error {
	db.mutex.Lock()
	db.called("ListTables")
	names := db.tableNames()
	db.mutex.Unlock()
	fn(&dynamodb.ListTablesOutput{TableNames: aws.StringSlice(names)}, true)
	return nil
}

// CreateTableWithContext creates a table with a single hash key.
func (db *DynamoDB) CreateTableWithContext(ctx aws.Context, input *dynamodb.CreateTableInput, opts ...request.Option) (*dynamodb.CreateTableOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("CreateTable")
	name := aws.StringValue(input.TableName)
	if _, ok := db.tables[name]; ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceInUseException, "Table already exists: "+name, nil)
	}
	var keyAttr string
	for _, elem := range input.KeySchema {
		if aws.StringValue(elem.KeyType) == dynamodb.KeyTypeHash {
			keyAttr = aws.StringValue(elem.AttributeName)
		}
	}
	if keyAttr == "" {
		return nil, validation("no hash key in key schema")
	}
	tbl := &fakeTable{
		keyAttr:   keyAttr,
		status:    dynamodb.TableStatusCreating,
		ttlStatus: dynamodb.TimeToLiveStatusDisabled,
		items:     make(map[string]map[string]*dynamodb.AttributeValue),
	}
	if db.ActivateAfter <= 0 && !db.NeverActivate {
		tbl.status = dynamodb.TableStatusActive
	}
	if db.tables == nil {
		db.tables = make(map[string]*fakeTable)
	}
	db.tables[name] = tbl
	return &dynamodb.CreateTableOutput{
		TableDescription: &dynamodb.TableDescription{
			TableName:   aws.String(name),
			TableStatus: aws.String(tbl.status),
		},
	}, nil
}

// DescribeTableWithContext reports the table status, activating a
// creating table once it has been described ActivateAfter times.
func (db *DynamoDB) DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("DescribeTable")
	tbl := db.tables[aws.StringValue(input.TableName)]
	if tbl == nil {
		return nil, notFound(input.TableName)
	}
	tbl.describes++
	if tbl.status == dynamodb.TableStatusCreating && !db.NeverActivate && tbl.describes >= db.ActivateAfter {
		tbl.status = dynamodb.TableStatusActive
	}
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{
			TableName:   input.TableName,
			TableStatus: aws.String(tbl.status),
		},
	}, nil
}

// DeleteTableWithContext removes a table and all of its items.
func (db *DynamoDB) DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("DeleteTable")
	name := aws.StringValue(input.TableName)
	if _, ok := db.tables[name]; !ok {
		return nil, notFound(input.TableName)
	}
	delete(db.tables, name)
	return &dynamodb.DeleteTableOutput{}, nil
}

// DescribeTimeToLiveWithContext reports the time to live status.
func (db *DynamoDB) DescribeTimeToLiveWithContext(ctx aws.Context, input *dynamodb.DescribeTimeToLiveInput, opts ...request.Option) (*dynamodb.DescribeTimeToLiveOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("DescribeTimeToLive")
	tbl := db.tables[aws.StringValue(input.TableName)]
	if tbl == nil {
		return nil, notFound(input.TableName)
	}
	desc := &dynamodb.TimeToLiveDescription{
		TimeToLiveStatus: aws.String(tbl.ttlStatus),
	}
	if tbl.ttlAttr != "" {
		desc.AttributeName = aws.String(tbl.ttlAttr)
	}
	return &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: desc}, nil
}

// UpdateTimeToLiveWithContext enables time to live. Like DynamoDB, it
// rejects a request to enable time to live when it is already enabled.
func (db *DynamoDB) UpdateTimeToLiveWithContext(ctx aws.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...request.Option) (*dynamodb.UpdateTimeToLiveOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("UpdateTimeToLive")
	tbl, err := db.activeTable(input.TableName)
	if err != nil {
		return nil, err
	}
	spec := input.TimeToLiveSpecification
	if aws.BoolValue(spec.Enabled) {
		if tbl.ttlStatus == dynamodb.TimeToLiveStatusEnabled {
			return nil, validation("TimeToLive is already enabled")
		}
		tbl.ttlStatus = dynamodb.TimeToLiveStatusEnabled
		tbl.ttlAttr = aws.StringValue(spec.AttributeName)
	} else {
		tbl.ttlStatus = dynamodb.TimeToLiveStatusDisabled
	}
	return &dynamodb.UpdateTimeToLiveOutput{TimeToLiveSpecification: spec}, nil
}

// GetItemWithContext returns the item matching the hash key.
func (db *DynamoDB) GetItemWithContext(ctx aws.Context, input *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("GetItem")
	if db.Err != nil {
		return nil, db.Err
	}
	tbl, err := db.activeTable(input.TableName)
	if err != nil {
		return nil, err
	}
	key, ok := input.Key[tbl.keyAttr]
	if !ok || key.S == nil {
		return nil, validation("the provided key element does not match the schema")
	}
	return &dynamodb.GetItemOutput{Item: copyItem(tbl.items[*key.S])}, nil
}

// PutItemWithContext creates or replaces an item.
func (db *DynamoDB) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.called("PutItem")
	if db.Err != nil {
		return nil, db.Err
	}
	tbl, err := db.activeTable(input.TableName)
	if err != nil {
		return nil, err
	}
	key, ok := input.Item[tbl.keyAttr]
	if !ok || key.S == nil {
		return nil, validation("missing the key " + tbl.keyAttr + " in the item")
	}
	tbl.items[*key.S] = copyItem(input.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func copyItem(item map[string]*dynamodb.AttributeValue) map[string]*dynamodb.AttributeValue {
	if item == nil {
		return nil
	}
	cpy := make(map[string]*dynamodb.AttributeValue, len(item))
	for k, v := range item {
		cpy[k] = v
	}
	return cpy
}
