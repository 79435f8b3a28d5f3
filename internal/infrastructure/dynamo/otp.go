package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/otpcode"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Number of times Verify re-reads a record after losing a conditional
// attempt increment to a concurrent caller.
const maxIncrementRetries = 3

// otpItem is the stored form of one OTP record. expires_at is unix millis and
// authoritative; ttl is unix seconds for DynamoDB's background sweeper.
type otpItem struct {
	Phone     string `dynamodbav:"phone"`
	CodeHash  string `dynamodbav:"code_hash"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	Attempts  int    `dynamodbav:"attempts"`
	TTL       int64  `dynamodbav:"ttl"`
}

func newOTPItem(phone, hash string, expiresAt time.Time) otpItem {
	return otpItem{
		Phone:     phone,
		CodeHash:  hash,
		ExpiresAt: expiresAt.UnixMilli(),
		TTL:       expiresAt.Add(time.Minute).Unix(),
	}
}

func (it otpItem) record() domain.OTPRecord {
	return domain.OTPRecord{
		Phone:     it.Phone,
		CodeHash:  it.CodeHash,
		ExpiresAt: time.UnixMilli(it.ExpiresAt).UTC(),
		Attempts:  it.Attempts,
	}
}

// OTPStore keeps one OTP item per phone. Every mutation after the initial put
// is conditioned on the code hash it read, so a newer Store always wins.
type OTPStore struct {
	client    *dynamodb.Client
	tableName string
	clock     clock.Clock
}

func NewOTPStore(client *dynamodb.Client, tableName string, clk clock.Clock) *OTPStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &OTPStore{client: client, tableName: tableName, clock: clk}
}

func (s *OTPStore) Store(ctx context.Context, phone, code string, ttl time.Duration) error {
	hash, err := otpcode.Hash(code)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(newOTPItem(phone, hash, s.clock.Now().Add(ttl)))
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	for i := 0; i < maxIncrementRetries; i++ {
		rec, found, err := s.get(ctx, phone)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		if rec.Expired(s.clock.Now()) || rec.Attempts >= domain.MaxOTPAttempts {
			return false, s.deleteIfHash(ctx, phone, rec.CodeHash)
		}

		counted, err := s.countAttempt(ctx, rec)
		if err != nil {
			return false, err
		}
		if !counted {
			continue
		}

		if !otpcode.Matches(rec.CodeHash, code) {
			return false, nil
		}
		return s.consume(ctx, phone, rec.CodeHash)
	}
	slog.Warn("otp verify gave up under contention", "attempts", maxIncrementRetries)
	return false, nil
}

func (s *OTPStore) Clear(ctx context.Context, phone string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(fieldPhone, phone),
	})
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (s *OTPStore) get(ctx context.Context, phone string) (domain.OTPRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(fieldPhone, phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.OTPRecord{}, false, fmt.Errorf("get otp: %w", err)
	}
	if out.Item == nil {
		return domain.OTPRecord{}, false, nil
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.OTPRecord{}, false, fmt.Errorf("unmarshal otp: %w", err)
	}
	return it.record(), true, nil
}

// countAttempt increments attempts only if the item is unchanged since rec was
// read. It reports false when another writer got there first.
func (s *OTPStore) countAttempt(ctx context.Context, rec domain.OTPRecord) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey(fieldPhone, rec.Phone),
		UpdateExpression:    aws.String("SET #a = #a + :one"),
		ConditionExpression: aws.String("#h = :h AND #a = :seen"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
			"#h": fieldCodeHash,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":h":    &types.AttributeValueMemberS{Value: rec.CodeHash},
			":seen": &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Attempts)},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("count otp attempt: %w", err)
	}
	return true, nil
}

// consume deletes the record if it still holds hash. It reports false when
// the record was replaced or already consumed.
func (s *OTPStore) consume(ctx context.Context, phone, hash string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, hashConditionedDelete(s.tableName, phone, hash))
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}

func (s *OTPStore) deleteIfHash(ctx context.Context, phone, hash string) error {
	_, err := s.client.DeleteItem(ctx, hashConditionedDelete(s.tableName, phone, hash))
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func hashConditionedDelete(table, phone, hash string) *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:                 aws.String(table),
		Key:                       strKey(fieldPhone, phone),
		ConditionExpression:       aws.String("#h = :h"),
		ExpressionAttributeNames:  map[string]string{"#h": fieldCodeHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": &types.AttributeValueMemberS{Value: hash}},
	}
}
