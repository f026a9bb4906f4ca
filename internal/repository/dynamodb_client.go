package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

const (
	skPrefixMem        = "MEM#"
	skMeta             = "META#"
	ttlDuration        = 30 * 24 * time.Hour // 30-day TTL
	defaultSearchLimit = 50
	maxTransactItems   = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores conversation intelligence in a single DynamoDB table.
type Client struct {
	api         dynamodbAPI
	tableName   string
	searchLimit int
}

// New creates a new repository Client. A non-positive searchLimit uses the default.
func New(api dynamodbAPI, tableName string, searchLimit int) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Client{api: api, tableName: tableName, searchLimit: searchLimit}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// memSK returns the sort key for the n-th entry written at ts.
func memSK(ts time.Time, n int) string {
	return fmt.Sprintf("%s%s#%03d", skPrefixMem, ts.UTC().Format(time.RFC3339Nano), n)
}

// ttlValue returns a Unix timestamp 30 days after ts.
func ttlValue(ts time.Time) int64 {
	return ts.Add(ttlDuration).Unix()
}

// Search returns the newest MEM# entries of a conversation in chronological
// order. Entries whose content does not contain query (case-insensitive) are
// dropped; an empty query keeps everything.
func (c *Client) Search(ctx context.Context, query, conversationID string) ([]domain.MemoryEntry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMem},
		},
		// Read newest first so LIMIT favors the most recent intelligence.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(c.searchLimit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: Search query: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	entries := make([]domain.MemoryEntry, 0, len(out.Items))
	for _, item := range out.Items {
		fields, err := itemToFields(item)
		if err != nil {
			return nil, fmt.Errorf("repository: Search unmarshal: %w", err)
		}
		if needle != "" && !matches(fields, needle) {
			continue
		}
		entries = append(entries, domain.StructuredEntry(fields))
	}
	// Reverse to chronological order before returning to prompt assembly.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Add appends messages and bumps the conversation metadata in one transaction.
func (c *Client) Add(ctx context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: Add: conversation id is required")
	}
	if len(messages) == 0 {
		return errors.New("repository: Add: no messages")
	}
	if len(messages) >= maxTransactItems {
		return fmt.Errorf("repository: Add: %d messages exceed one transaction", len(messages))
	}

	ts := now().UTC()
	items := make([]types.TransactWriteItem, 0, len(messages)+1)
	for i, m := range messages {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                memoryItem(conversationID, memSK(ts, i), m, metadata, ts),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	items = append(items, types.TransactWriteItem{Update: c.metaUpdate(conversationID, ts)})

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return fmt.Errorf("repository: Add: %w", err)
	}
	return nil
}

func (c *Client) metaUpdate(conversationID string, ts time.Time) *types.Update {
	return &types.Update{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression:         aws.String("ADD turns :one SET conversationId = :cid, lastActivity = :la, #ttl = :ttl"),
		ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":cid": &types.AttributeValueMemberS{Value: conversationID},
			":la":  &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339)},
			":ttl": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue(ts))},
		},
	}
}

func memoryItem(conversationID, sk string, m domain.MemoryMessage, metadata map[string]string, ts time.Time) map[string]types.AttributeValue {
	meta := make(map[string]types.AttributeValue, len(metadata))
	for k, v := range metadata {
		meta[k] = &types.AttributeValueMemberS{Value: v}
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: sk},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"role":           &types.AttributeValueMemberS{Value: m.Role},
		"content":        &types.AttributeValueMemberS{Value: m.Content},
		"metadata":       &types.AttributeValueMemberM{Value: meta},
		"createdAt":      &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue(ts))},
	}
}

// itemToFields converts a MEM# item to the structured entry shape. The
// content is exposed under "memory" so it renders like other stores.
func itemToFields(item map[string]types.AttributeValue) (map[string]any, error) {
	content, err := strAttr(item, "content")
	if err != nil {
		return nil, err
	}
	role, _ := strAttr(item, "role")           // allow empty
	createdAt, _ := strAttr(item, "createdAt") // allow empty

	fields := map[string]any{
		"memory":     content,
		"role":       role,
		"created_at": createdAt,
	}
	if m, ok := item["metadata"].(*types.AttributeValueMemberM); ok {
		meta := make(map[string]any, len(m.Value))
		for k, v := range m.Value {
			if s, ok := v.(*types.AttributeValueMemberS); ok {
				meta[k] = s.Value
			}
		}
		fields["metadata"] = meta
	}
	return fields, nil
}

func matches(fields map[string]any, needle string) bool {
	content, _ := fields["memory"].(string)
	if strings.Contains(strings.ToLower(content), needle) {
		return true
	}
	meta, _ := fields["metadata"].(map[string]any)
	for _, v := range meta {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

var now = time.Now
