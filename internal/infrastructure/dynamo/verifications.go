package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-gate/internal/domain"
)

// VerificationRepo stores one VerificationRecord per provider identity.
// PK: identity_id, GSI: email-index.
//
// Every state change is a single conditional UpdateItem, so concurrent
// registrations and verifications race at DynamoDB rather than in process memory.
type VerificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, now: time.Now}
}

// Get reads a record by identity with a strongly consistent read.
func (r *VerificationRepo) Get(ctx context.Context, identityID string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldIdentityID, identityID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return unmarshalRecord(out.Item)
}

// GetByEmail looks a record up through the email GSI.
func (r *VerificationRepo) GetByEmail(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#e = :e"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query verification by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return unmarshalRecord(out.Items[0])
}

// IssueOTP creates the record for identityID, or replaces its pending OTP,
// as long as the identity is not verified yet. For a verified identity nothing
// is written and the stored record is returned unchanged.
func (r *VerificationRepo) IssueOTP(ctx context.Context, identityID, email, otp string, expiry time.Time) (*domain.VerificationRecord, error) {
	now := r.now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldEmail:      email,
		fieldOTP:        otp,
		fieldOTPExpiry:  expiry.UTC(),
		fieldIsVerified: false,
		fieldCreatedAt:  ifNotExists{now},
		fieldUpdatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldIdentityID
	ue.Names["#ver"] = fieldIsVerified
	ue.Values[":unverified"] = &types.AttributeValueMemberBOOL{Value: false}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldIdentityID, identityID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("attribute_not_exists(#pk) OR #ver = :unverified"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if item, ok := isConditionFailed(err); ok {
			if item != nil {
				return unmarshalRecord(item)
			}
			return r.Get(ctx, identityID)
		}
		return nil, fmt.Errorf("issue otp: %w", err)
	}
	return unmarshalRecord(out.Attributes)
}

// MarkVerified flips the record to verified and clears its OTP in one write,
// but only while it is still unverified and still holds otp. It reports whether
// this call performed the transition; false means another writer got there
// first (verified it, or superseded the OTP).
func (r *VerificationRepo) MarkVerified(ctx context.Context, identityID, otp string) (bool, error) {
	now := r.now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldIsVerified: true,
		fieldVerifiedAt: now,
		fieldUpdatedAt:  now,
	}, fieldOTP, fieldOTPExpiry)
	if err != nil {
		return false, err
	}
	ue.Names["#ver"] = fieldIsVerified
	ue.Names["#otp"] = fieldOTP
	ue.Values[":unverified"] = &types.AttributeValueMemberBOOL{Value: false}
	ue.Values[":otp"] = &types.AttributeValueMemberS{Value: otp}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldIdentityID, identityID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :unverified AND #otp = :otp"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if _, ok := isConditionFailed(err); ok {
			return false, nil
		}
		return false, fmt.Errorf("mark verified: %w", err)
	}
	return true, nil
}

func unmarshalRecord(item map[string]types.AttributeValue) (*domain.VerificationRecord, error) {
	var rec domain.VerificationRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &rec, nil
}
