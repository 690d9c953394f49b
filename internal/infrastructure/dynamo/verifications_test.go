package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-gate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestRepo(api API) *VerificationRepo {
	r := NewVerificationRepo(api, "verifications")
	r.now = func() time.Time { return fixedNow }
	return r
}

func marshalRecord(t *testing.T, rec domain.VerificationRecord) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(rec)
	require.NoError(t, err)
	return item
}

func TestVerificationRepo_Get(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	item := marshalRecord(t, domain.VerificationRecord{IdentityID: "id-1", Email: "a@example.com", IsVerified: true})
	api.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead) && in.Key[fieldIdentityID].(*types.AttributeValueMemberS).Value == "id-1"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	rec, err := repo.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", rec.Email)
	assert.True(t, rec.IsVerified)
	assert.Nil(t, rec.OTP)
}

func TestVerificationRepo_Get_NotFound(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	api.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerificationRepo_GetByEmail(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	code := "123456"
	exp := fixedNow.Add(10 * time.Minute)
	item := marshalRecord(t, domain.VerificationRecord{IdentityID: "id-2", Email: "b@example.com", OTP: &code, OTPExpiry: &exp})
	api.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		v := in.ExpressionAttributeValues[":e"].(*types.AttributeValueMemberS).Value
		return aws.ToString(in.IndexName) == emailIndex && v == "b@example.com" && aws.ToInt32(in.Limit) == 1
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	rec, err := repo.GetByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-2", rec.IdentityID)
	require.NotNil(t, rec.OTP)
	assert.Equal(t, code, *rec.OTP)
	assert.True(t, rec.OTPExpiry.Equal(exp))
}

func TestVerificationRepo_GetByEmail_NotFound(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	api.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerificationRepo_IssueOTP_Writes(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	exp := fixedNow.Add(10 * time.Minute)
	code := "654321"
	stored := marshalRecord(t, domain.VerificationRecord{
		IdentityID: "id-3", Email: "c@example.com", OTP: &code, OTPExpiry: &exp,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})

	var captured *dynamodb.UpdateItemInput
	api.On("UpdateItem", ctx, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.UpdateItemInput) }).
		Return(&dynamodb.UpdateItemOutput{Attributes: stored}, nil)

	rec, err := repo.IssueOTP(ctx, "id-3", "c@example.com", code, exp)
	require.NoError(t, err)
	assert.Equal(t, code, *rec.OTP)
	assert.False(t, rec.IsVerified)

	require.NotNil(t, captured)
	assert.Equal(t, "attribute_not_exists(#pk) OR #ver = :unverified", aws.ToString(captured.ConditionExpression))
	assert.Contains(t, aws.ToString(captured.UpdateExpression), "if_not_exists")
	assert.Equal(t, types.ReturnValueAllNew, captured.ReturnValues)
	assert.Equal(t, types.ReturnValuesOnConditionCheckFailureAllOld, captured.ReturnValuesOnConditionCheckFailure)
}

func TestVerificationRepo_IssueOTP_AlreadyVerified(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	verified := marshalRecord(t, domain.VerificationRecord{IdentityID: "id-4", Email: "d@example.com", IsVerified: true})
	api.On("UpdateItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed"), Item: verified})

	rec, err := repo.IssueOTP(ctx, "id-4", "d@example.com", "111111", fixedNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, rec.IsVerified)
	assert.Nil(t, rec.OTP)
	api.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

func TestVerificationRepo_IssueOTP_ConditionFailedWithoutItem(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	verified := marshalRecord(t, domain.VerificationRecord{IdentityID: "id-5", Email: "e@example.com", IsVerified: true})
	api.On("UpdateItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})
	api.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{Item: verified}, nil)

	rec, err := repo.IssueOTP(ctx, "id-5", "e@example.com", "111111", fixedNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, rec.IsVerified)
}

func TestVerificationRepo_IssueOTP_StoreError(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	api.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := repo.IssueOTP(ctx, "id-6", "f@example.com", "111111", fixedNow.Add(time.Minute))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue otp")
}

func TestVerificationRepo_MarkVerified(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	var captured *dynamodb.UpdateItemInput
	api.On("UpdateItem", ctx, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.UpdateItemInput) }).
		Return(&dynamodb.UpdateItemOutput{}, nil)

	ok, err := repo.MarkVerified(ctx, "id-7", "222222")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotNil(t, captured)
	assert.Equal(t, "#ver = :unverified AND #otp = :otp", aws.ToString(captured.ConditionExpression))
	assert.Contains(t, aws.ToString(captured.UpdateExpression), "REMOVE")
	assert.Equal(t, "222222", captured.ExpressionAttributeValues[":otp"].(*types.AttributeValueMemberS).Value)
}

func TestVerificationRepo_MarkVerified_LostRace(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	api.On("UpdateItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	ok, err := repo.MarkVerified(ctx, "id-8", "222222")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerificationRepo_MarkVerified_StoreError(t *testing.T) {
	api := &mockAPI{}
	repo := newTestRepo(api)
	ctx := context.Background()

	api.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("boom"))

	ok, err := repo.MarkVerified(ctx, "id-9", "222222")
	require.Error(t, err)
	assert.False(t, ok)
}
