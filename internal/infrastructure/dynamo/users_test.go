package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-user-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func onIndex(index string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.QueryInput) bool { return aws.ToString(in.IndexName) == index })
}

func TestPut_IsConditionalOnNewUserID(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "attribute_not_exists(#pk)" &&
			in.ExpressionAttributeNames["#pk"] == fieldUserID
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	repo := NewUserRepo(api, "users")
	require.NoError(t, repo.Put(context.Background(), &domain.User{UserID: "u1", Username: "alice"}))
	api.AssertExpectations(t)
}

func TestPut_ExistingUserIDIsConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")})

	repo := NewUserRepo(api, "users")
	err := repo.Put(context.Background(), &domain.User{UserID: "u1", Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestFindByIdentifier_FallsBackToEmail(t *testing.T) {
	api := &mockAPI{}
	item, err := attributevalue.MarshalMap(&domain.User{UserID: "u1", Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	api.On("Query", mock.Anything, onIndex(indexUsername)).Return(&dynamodb.QueryOutput{}, nil)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		v, _ := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS)
		return aws.ToString(in.IndexName) == indexEmail && v != nil && v.Value == "alice@example.com"
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	repo := NewUserRepo(api, "users")
	u, err := repo.FindByIdentifier(context.Background(), "Alice@Example.com")

	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	api.AssertExpectations(t)
}

func TestFindByIdentifier_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	repo := NewUserRepo(api, "users")
	_, err := repo.FindByIdentifier(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindByIdentifier_QueryErrorIsNotNotFound(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("Query", mock.Anything, onIndex(indexUsername)).Return(nil, boom)

	repo := NewUserRepo(api, "users")
	_, err := repo.FindByIdentifier(context.Background(), "alice")

	assert.ErrorIs(t, err, boom)
	api.AssertNotCalled(t, "Query", mock.Anything, onIndex(indexEmail))
}

func TestGet_Missing(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	repo := NewUserRepo(api, "users")
	_, err := repo.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePasswordHash_MissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "attribute_exists(#pk)" && in.ExpressionAttributeNames["#pk"] == fieldUserID
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("no item")})

	repo := NewUserRepo(api, "users")
	err := repo.UpdatePasswordHash(context.Background(), "u1", "h")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetTwoFactor_WritesFlag(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		for k, name := range in.ExpressionAttributeNames {
			if name == fieldTwoFactorEnabled {
				v, ok := in.ExpressionAttributeValues[":v"+k[2:]].(*types.AttributeValueMemberBOOL)
				return ok && v.Value
			}
		}
		return false
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	repo := NewUserRepo(api, "users")
	require.NoError(t, repo.SetTwoFactor(context.Background(), "u1", true))
	api.AssertExpectations(t)
}
