package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

type fakeDynamo struct {
	queryOut    *dynamodb.QueryOutput
	queryErr    error
	txErr       error
	lastQueryIn *dynamodb.QueryInput
	lastTxInput *dynamodb.TransactWriteItemsInput
	txCalls     int
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.txCalls++
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func makeItem(sk, role, content, kind string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK":      &types.AttributeValueMemberS{Value: sk},
		"role":    &types.AttributeValueMemberS{Value: role},
		"content": &types.AttributeValueMemberS{Value: content},
		"metadata": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"type": &types.AttributeValueMemberS{Value: kind},
		}},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table", 0)
	require.NoError(t, err)
	return c
}

func TestSearch_ReordersDescendingResultsToChronological(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeItem("MEM#2026-02-27T12:00:00Z#001", "assistant", "newer", domain.KindScamIntelligence),
				makeItem("MEM#2026-02-27T11:00:00Z#000", "user", "older", domain.KindScamIntelligence),
			},
		},
	}
	c := mustNewClient(t, db)
	entries, err := c.Search(context.Background(), "scam", "abc")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "older", entries[0].Text())
	require.Equal(t, "newer", entries[1].Text())
	require.True(t, entries[0].IsStructured())
	require.Equal(t, "user", entries[0].Fields()["role"])
}

func TestSearch_FiltersByQuery(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeItem("MEM#3", "user", "pay to fee@ybl", "note"),
				makeItem("MEM#2", "user", "hello", "note"),
				makeItem("MEM#1", "assistant", "{}", domain.KindScamIntelligence),
			},
		},
	}
	c := mustNewClient(t, db)

	entries, err := c.Search(context.Background(), "YBL", "abc")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "pay to fee@ybl", entries[0].Text())

	entries, err = c.Search(context.Background(), "scam", "abc")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "{}", entries[0].Text())

	entries, err = c.Search(context.Background(), "", "abc")
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestSearch_QueryShape(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c, err := New(db, "test-table", 7)
	require.NoError(t, err)

	entries, err := c.Search(context.Background(), "scam", "abc")
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(7), *db.lastQueryIn.Limit)
	require.Equal(t, "CONV#abc", db.lastQueryIn.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, skPrefixMem, db.lastQueryIn.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value)
}

func TestSearch_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.Search(context.Background(), "scam", "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Search")
}

func TestSearch_MalformedItem_MissingContent(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK": &types.AttributeValueMemberS{Value: "MEM#ts"},
	}
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}}
	c := mustNewClient(t, db)
	_, err := c.Search(context.Background(), "", "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "content")
}

func TestAdd_WritesEntriesAndMetaInOneTransaction(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	fixed := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }

	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.Add(context.Background(), "abc", []domain.MemoryMessage{
		{Role: domain.RoleUser, Content: "send otp"},
		{Role: domain.RoleAssistant, Content: `{"kind":"scam_intelligence"}`},
	}, map[string]string{"type": domain.KindScamIntelligence})
	require.NoError(t, err)
	require.Equal(t, 1, db.txCalls)

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 3)
	first := items[0].Put
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *first.ConditionExpression)
	require.Equal(t, "CONV#abc", first.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, memSK(fixed, 0), first.Item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "send otp", first.Item["content"].(*types.AttributeValueMemberS).Value)
	meta := first.Item["metadata"].(*types.AttributeValueMemberM).Value
	require.Equal(t, domain.KindScamIntelligence, meta["type"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, memSK(fixed, 1), items[1].Put.Item["SK"].(*types.AttributeValueMemberS).Value)

	update := items[2].Update
	require.NotNil(t, update)
	require.Equal(t, skMeta, update.Key["SK"].(*types.AttributeValueMemberS).Value)
	require.True(t, strings.HasPrefix(*update.UpdateExpression, "ADD turns :one"))
}

func TestAdd_Validation(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.Add(context.Background(), " ", []domain.MemoryMessage{{Role: "user", Content: "x"}}, nil)
	require.ErrorContains(t, err, "conversation id")

	err = c.Add(context.Background(), "abc", nil, nil)
	require.ErrorContains(t, err, "no messages")

	err = c.Add(context.Background(), "abc", make([]domain.MemoryMessage, maxTransactItems), nil)
	require.ErrorContains(t, err, "exceed")
	require.Zero(t, db.txCalls)
}

func TestAdd_DynamoError(t *testing.T) {
	db := &fakeDynamo{txErr: errors.New("transaction canceled")}
	c := mustNewClient(t, db)
	err := c.Add(context.Background(), "abc", []domain.MemoryMessage{{Role: "user", Content: "x"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Add")
}

func TestConvPK(t *testing.T) {
	require.Equal(t, "CONV#my-conv", convPK("my-conv"))
}

func TestMemSK_SortsByTimeThenIndex(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "MEM#2026-02-25T10:00:00Z#000", memSK(ts, 0))
	require.Less(t, memSK(ts, 1), memSK(ts, 2))
	require.Less(t, memSK(ts, 9), memSK(ts.Add(time.Second), 0))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
