package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// fakeDynamo is an in-memory table keyed by ScenarioID.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
	scans int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	if s, ok := key[dynamoKey].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := keyOf(in.Key)
	if _, ok := f.items[id]; !ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(f.items, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.scans++
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			dynamoKey: item[dynamoKey],
			"Name":    item["Name"],
		})
	}
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	exerciseStore(t, NewDynamo(newFakeDynamo(), "scenarios"))
}

func TestDynamoStoreItemShape(t *testing.T) {
	fake := newFakeDynamo()
	st := NewDynamo(fake, "scenarios")
	if err := st.Save(context.Background(), sample("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	item := fake.items["x"]
	for _, attr := range []string{"ScenarioID", "Name", "ScenarioType", "Document", "UpdatedAt"} {
		if _, ok := item[attr]; !ok {
			t.Fatalf("item missing attribute %s: %+v", attr, item)
		}
	}
	if typ := item["ScenarioType"].(*types.AttributeValueMemberS).Value; typ != "custom" {
		t.Fatalf("ScenarioType = %q", typ)
	}
}

func TestDynamoStoreClassifiesErrors(t *testing.T) {
	fake := newFakeDynamo()
	st := NewDynamo(fake, "scenarios")
	ctx := context.Background()

	fake.err = &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Fault: smithy.FaultClient}
	if _, err := st.Load(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("throttling err = %v, want ErrUnavailable", err)
	}

	fake.err = &smithy.GenericAPIError{Code: "InternalServerError", Fault: smithy.FaultServer}
	if err := st.Save(ctx, sample("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("server fault err = %v, want ErrUnavailable", err)
	}

	fake.err = &smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient}
	_, err := st.List(ctx)
	var ioErr *IOError
	if !errors.As(err, &ioErr) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("client fault err = %v, want plain IOError", err)
	}
}
