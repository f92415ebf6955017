package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

// fakeDynamo implements dynamodbAPI with a real item map so the PK shape and
// the consume semantics are exercised end to end.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue

	putErr    error
	getErr    error
	deleteErr error

	lastPutKey string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.lastPutKey = itemKey(in.Item)
	f.items[f.lastPutKey] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	key := itemKey(in.Key)
	item, ok := f.items[key]
	if !ok {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{Attributes: item}, nil
}

func newTestStore(t *testing.T, api dynamodbAPI) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(api, "sessions")
	require.NoError(t, err)
	return store
}

func TestNewSessionStore_Validation(t *testing.T) {
	_, err := NewSessionStore(nil, "sessions")
	require.Error(t, err)

	_, err = NewSessionStore(newFakeDynamo(), "  ")
	require.Error(t, err)
}

func TestSetPendingLink_WritesSharedKeyShape(t *testing.T) {
	fake := newFakeDynamo()
	store := newTestStore(t, fake)

	require.NoError(t, store.SetPendingLink(context.Background(), 42, "abc123", 1800*time.Second))
	require.Equal(t, "session:42:message|SESSION", fake.lastPutKey)
}

func TestSetPendingLink_EmptyLinkRejected(t *testing.T) {
	store := newTestStore(t, newFakeDynamo())
	require.Error(t, store.SetPendingLink(context.Background(), 42, " ", time.Second))
}

func TestGetPendingLink_RoundTrip(t *testing.T) {
	store := newTestStore(t, newFakeDynamo())

	link, ok, err := store.GetPendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, link)

	require.NoError(t, store.SetPendingLink(context.Background(), 42, "abc123", 1800*time.Second))

	link, ok, err = store.GetPendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", link)
}

func TestSetPendingLink_OverwritesPriorSession(t *testing.T) {
	store := newTestStore(t, newFakeDynamo())

	require.NoError(t, store.SetPendingLink(context.Background(), 42, "first_link", 1800*time.Second))
	require.NoError(t, store.SetPendingLink(context.Background(), 42, "second_link", 1800*time.Second))

	link, ok, err := store.ConsumePendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second_link", link)
}

func TestConsumePendingLink_DeletesSession(t *testing.T) {
	store := newTestStore(t, newFakeDynamo())
	require.NoError(t, store.SetPendingLink(context.Background(), 42, "abc123", 1800*time.Second))

	link, ok, err := store.ConsumePendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", link)

	// A second consume must see nothing: the stale link may not redeliver.
	_, ok, err = store.ConsumePendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConsumePendingLink_IsolatedPerSender(t *testing.T) {
	store := newTestStore(t, newFakeDynamo())
	require.NoError(t, store.SetPendingLink(context.Background(), 1, "link_a", 1800*time.Second))
	require.NoError(t, store.SetPendingLink(context.Background(), 2, "link_b", 1800*time.Second))

	link, ok, err := store.ConsumePendingLink(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "link_a", link)

	link, ok, err = store.GetPendingLink(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "link_b", link)
}

func TestExpiredSessionIsInvisible(t *testing.T) {
	fake := newFakeDynamo()
	store := newTestStore(t, fake)

	// TTL reaping is lazy in DynamoDB; simulate an item past its expiry that
	// the table has not deleted yet.
	expired := time.Now().Add(-time.Second).Unix()
	fake.items["session:42:message|SESSION"] = map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: "session:42:message"},
		"SK":        &types.AttributeValueMemberS{Value: "SESSION"},
		"link":      &types.AttributeValueMemberS{Value: "abc123"},
		"expiresAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expired, 10)},
	}

	_, ok, err := store.GetPendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.ConsumePendingLink(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStore_APIFailures(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("dynamodb down")
	fake.getErr = errors.New("dynamodb down")
	fake.deleteErr = errors.New("dynamodb down")
	store := newTestStore(t, fake)

	err := store.SetPendingLink(context.Background(), 42, "abc123", time.Second)
	require.ErrorContains(t, err, "SetPendingLink")

	_, _, err = store.GetPendingLink(context.Background(), 42)
	require.ErrorContains(t, err, "GetPendingLink")

	_, _, err = store.ConsumePendingLink(context.Background(), 42)
	require.ErrorContains(t, err, "ConsumePendingLink")
}

func TestLiveLink_MalformedItem(t *testing.T) {
	fake := newFakeDynamo()
	store := newTestStore(t, fake)

	fake.items["session:42:message|SESSION"] = map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "session:42:message"},
		"SK": &types.AttributeValueMemberS{Value: "SESSION"},
	}

	_, _, err := store.GetPendingLink(context.Background(), 42)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expiry")
}
