// Package repository holds the relay's only owned mutable state: the
// ephemeral sender → link sessions behind the anonymous-message flow.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const skSession = "SESSION"

// dynamodbAPI is the minimal DynamoDB interface required by SessionStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionStore keeps at most one pending-link session per sender, expiring
// unconsumed sessions via the table's TTL attribute. Writes are last-write-
// wins; consume is an atomic read-and-delete.
type SessionStore struct {
	api       dynamodbAPI
	tableName string
}

// NewSessionStore creates a SessionStore over the given table.
func NewSessionStore(api dynamodbAPI, tableName string) (*SessionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &SessionStore{api: api, tableName: tableName}, nil
}

// sessionPK returns the partition key for a sender's pending session. The
// shape is shared with other processes reading the same store, so it must
// not change.
func sessionPK(senderID int64) string {
	return fmt.Sprintf("session:%d:message", senderID)
}

func sessionKey(senderID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(senderID)},
		"SK": &types.AttributeValueMemberS{Value: skSession},
	}
}

// SetPendingLink records that the sender's next message targets link,
// overwriting any prior session for the same sender.
func (s *SessionStore) SetPendingLink(ctx context.Context, senderID int64, link string, ttl time.Duration) error {
	if strings.TrimSpace(link) == "" {
		return errors.New("repository: SetPendingLink: link must not be empty")
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(senderID)},
			"SK":        &types.AttributeValueMemberS{Value: skSession},
			"link":      &types.AttributeValueMemberS{Value: link},
			"expiresAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetPendingLink: %w", err)
	}
	return nil
}

// GetPendingLink returns the sender's live session link without consuming it.
func (s *SessionStore) GetPendingLink(ctx context.Context, senderID int64) (string, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            sessionKey(senderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: GetPendingLink: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	return liveLink(out.Item)
}

// ConsumePendingLink atomically reads and deletes the sender's session,
// returning the stored link if one was live at call time.
func (s *SessionStore) ConsumePendingLink(ctx context.Context, senderID int64) (string, bool, error) {
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          sessionKey(senderID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: ConsumePendingLink: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return "", false, nil
	}
	return liveLink(out.Attributes)
}

// liveLink extracts the link from a session item, treating expired items as
// absent. DynamoDB reaps TTL'd items lazily so the expiry check has to be
// enforced on read as well.
func liveLink(item map[string]types.AttributeValue) (string, bool, error) {
	expiresAt, err := intAttr(item, "expiresAt")
	if err != nil {
		return "", false, fmt.Errorf("repository: decode session expiry: %w", err)
	}
	if time.Now().Unix() > expiresAt {
		return "", false, nil
	}
	link, err := strAttr(item, "link")
	if err != nil {
		return "", false, fmt.Errorf("repository: decode session link: %w", err)
	}
	return link, true, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
