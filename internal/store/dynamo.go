package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/signalsfoundry/scenario-editor/model"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is one scenario row. The document is the same JSON the file
// backend writes; Name is duplicated for cheap listing.
type dynamoItem struct {
	ScenarioID   string `dynamodbav:"ScenarioID"`
	Name         string `dynamodbav:"Name"`
	ScenarioType string `dynamodbav:"ScenarioType"`
	Document     string `dynamodbav:"Document"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

const dynamoKey = "ScenarioID"

// Dynamo stores scenarios in a DynamoDB table keyed by ScenarioID.
type Dynamo struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamo wraps an existing client.
func NewDynamo(client DynamoAPI, table string) *Dynamo {
	return &Dynamo{client: client, table: table, now: time.Now}
}

// NewDynamoFromConfig builds a client from the default AWS configuration
// chain. A non-empty endpoint points the client at a local DynamoDB.
func NewDynamoFromConfig(ctx context.Context, table, region, endpoint string) (*Dynamo, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamo(client, table), nil
}

func (d *Dynamo) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKey: &types.AttributeValueMemberS{Value: id},
	}
}

// List implements Store.
func (d *Dynamo) List(ctx context.Context) ([]model.Summary, error) {
	proj := expression.NamesList(expression.Name(dynamoKey), expression.Name("Name"))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("build projection: %w", err)
	}

	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:                aws.String(d.table),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	var out []model.Summary
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, d.wrap("list", "", err)
		}
		for _, item := range page.Items {
			var row dynamoItem
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, &IOError{Op: "list", Err: err}
			}
			out = append(out, model.Summary{ID: row.ScenarioID, Name: row.Name})
		}
	}
	if out == nil {
		out = []model.Summary{}
	}
	sortSummaries(out)
	return out, nil
}

// Load implements Store.
func (d *Dynamo) Load(ctx context.Context, id string) (*model.Scenario, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	res, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, d.wrap("load", id, err)
	}
	if len(res.Item) == 0 {
		return nil, ErrNotFound
	}
	var row dynamoItem
	if err := attributevalue.UnmarshalMap(res.Item, &row); err != nil {
		return nil, &IOError{Op: "load", ID: id, Err: err}
	}
	s, err := Decode([]byte(row.Document))
	if err != nil {
		return nil, &IOError{Op: "load", ID: id, Err: err}
	}
	s.ID = id
	return s, nil
}

// Save implements Store.
func (d *Dynamo) Save(ctx context.Context, s *model.Scenario) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	doc, err := Encode(s)
	if err != nil {
		return &IOError{Op: "save", ID: s.ID, Err: err}
	}
	item, err := attributevalue.MarshalMap(dynamoItem{
		ScenarioID:   s.ID,
		Name:         s.Name,
		ScenarioType: string(s.ScenarioType),
		Document:     string(doc),
		UpdatedAt:    d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &IOError{Op: "save", ID: s.ID, Err: err}
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return d.wrap("save", s.ID, err)
	}
	return nil
}

// Delete implements Store.
func (d *Dynamo) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	cond := expression.AttributeExists(expression.Name(dynamoKey))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}
	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(d.table),
		Key:                      d.key(id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return d.wrap("delete", id, err)
	}
	return nil
}

// wrap classifies an SDK error. Throttling and server-side faults are
// marked unavailable so callers retry.
func (d *Dynamo) wrap(op, id string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorFault() {
		case smithy.FaultServer:
			err = fmt.Errorf("%w: %s", ErrUnavailable, apiErr.ErrorCode())
		default:
			switch apiErr.ErrorCode() {
			case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
				err = fmt.Errorf("%w: %s", ErrUnavailable, apiErr.ErrorCode())
			}
		}
	}
	return &IOError{Op: op, ID: id, Err: err}
}
