package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-user-service/internal/domain"
)

// VerificationRepo manages 2FA codes and password reset tokens.
// PK: key, SK: type ("2fa" | "reset"). ttl is the table TTL attribute;
// DynamoDB TTL deletion is lazy, so reads never rely on it.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.Verification) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Consume deletes the record only if it is unexpired, within its attempt
// budget and, for a non-empty secret, its code matches. The conditional delete
// is the atomic step; on failure the old item returned by DynamoDB is
// classified with the same predicate as every other store.
func (r *VerificationRepo) Consume(ctx context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error) {
	names := map[string]string{
		"#k": fieldVerificationKey,
		"#e": fieldExpiresAt,
		"#a": fieldAttempts,
		"#m": fieldMaxAttempts,
	}
	values := map[string]types.AttributeValue{
		":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixNano(), 10)},
		":zero": &types.AttributeValueMemberN{Value: "0"},
	}
	cond := "attribute_exists(#k) AND #e >= :now AND (#m = :zero OR #a < #m)"
	if secret != "" {
		names["#c"] = fieldCode
		values[":code"] = &types.AttributeValueMemberS{Value: secret}
		cond += " AND #c = :code"
	}

	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 compositeKey(fieldVerificationKey, key, fieldVerificationType, verType),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, err
		}
		return nil, r.classifyFailure(ctx, ccf.Item, secret, now)
	}

	var v domain.Verification
	if err := attributevalue.UnmarshalMap(out.Attributes, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &v, nil
}

func (r *VerificationRepo) classifyFailure(ctx context.Context, item map[string]types.AttributeValue, secret string, now time.Time) error {
	if len(item) == 0 {
		return domain.ErrTokenNotFound
	}
	var old domain.Verification
	if err := attributevalue.UnmarshalMap(item, &old); err != nil {
		return fmt.Errorf("unmarshal verification: %w", err)
	}
	switch err := old.Check(secret, now); {
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTooManyAttempts):
		r.deleteIssued(ctx, &old)
		return err
	case errors.Is(err, domain.ErrCodeMismatch):
		return r.recordFailure(ctx, &old)
	case err != nil:
		return err
	}
	// The record changed between the condition check and the read-back
	// (overwritten by a fresh issue); this attempt does not win it.
	return domain.ErrCodeMismatch
}

// recordFailure atomically bumps the attempt counter of the issuance observed
// in old and deletes the record once its budget is spent.
func (r *VerificationRepo) recordFailure(ctx context.Context, old *domain.Verification) error {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldVerificationKey, old.Key, fieldVerificationType, old.Type),
		UpdateExpression:         aws.String("ADD #a :one"),
		ConditionExpression:      aws.String("#i = :issued"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAttempts, "#i": fieldIssuedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":issued": &types.AttributeValueMemberN{Value: strconv.FormatInt(old.IssuedAt, 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		// Re-issued or removed meanwhile; a fresh record keeps its own count.
		return domain.ErrCodeMismatch
	}
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}

	var cur domain.Verification
	if err := attributevalue.UnmarshalMap(out.Attributes, &cur); err != nil {
		return fmt.Errorf("unmarshal verification: %w", err)
	}
	if !cur.Exhausted() {
		return domain.ErrCodeMismatch
	}
	r.deleteIssued(ctx, &cur)
	return domain.ErrTooManyAttempts
}

// deleteIssued removes the record observed in v, unless it was re-issued meanwhile.
func (r *VerificationRepo) deleteIssued(ctx context.Context, v *domain.Verification) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldVerificationKey, v.Key, fieldVerificationType, v.Type),
		ConditionExpression:      aws.String("#i = :issued"),
		ExpressionAttributeNames: map[string]string{"#i": fieldIssuedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":issued": &types.AttributeValueMemberN{Value: strconv.FormatInt(v.IssuedAt, 10)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if err != nil && !errors.As(err, &ccf) {
		slog.Warn("failed to delete spent verification", "type", v.Type, "err", err)
	}
}
