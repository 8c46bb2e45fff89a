package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/unifiro-api/internal/domain"
)

// Attribute names shared by the users and organizers tables.
const (
	attrAccountID      = "account_id"
	attrEmail          = "email"
	attrMobile         = "mobile"
	attrPasswordHash   = "password_hash"
	attrVerified       = "verified"
	attrOTPHash        = "otp_hash"
	attrOTPExpiresAt   = "otp_expires_at"
	attrResetDigest    = "reset_token_digest"
	attrResetExpiresAt = "reset_expires_at"
	attrUpdatedAt      = "updated_at"
	attrUniqueKey      = "unique_key"

	indexEmail       = "email-index"
	indexMobile      = "mobile-index"
	indexResetDigest = "reset_token_digest-index"
)

// accountItem is the stored shape of an account. Expiry instants are unix
// milliseconds so they can be compared in filter expressions.
type accountItem struct {
	AccountID      string    `dynamodbav:"account_id"`
	Kind           string    `dynamodbav:"kind"`
	Email          string    `dynamodbav:"email"`
	Mobile         string    `dynamodbav:"mobile"`
	PasswordHash   string    `dynamodbav:"password_hash"`
	Verified       bool      `dynamodbav:"verified"`
	OTPHash        string    `dynamodbav:"otp_hash,omitempty"`
	OTPExpiresAt   int64     `dynamodbav:"otp_expires_at,omitempty"`
	ResetDigest    string    `dynamodbav:"reset_token_digest,omitempty"`
	ResetExpiresAt int64     `dynamodbav:"reset_expires_at,omitempty"`
	FullName       string    `dynamodbav:"full_name,omitempty"`
	TermsAccepted  bool      `dynamodbav:"terms_accepted,omitempty"`
	OrganizerName  string    `dynamodbav:"organizer_name,omitempty"`
	OrganizerType  string    `dynamodbav:"organizer_type,omitempty"`
	About          string    `dynamodbav:"about,omitempty"`
	Location       string    `dynamodbav:"location,omitempty"`
	IDProof        string    `dynamodbav:"id_proof,omitempty"`
	BankAccount    string    `dynamodbav:"bank_account,omitempty"`
	IFSC           string    `dynamodbav:"ifsc,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
}

func toItem(a *domain.Account) accountItem {
	it := accountItem{
		AccountID:    a.AccountID,
		Kind:         string(a.Kind),
		Email:        a.Email,
		Mobile:       a.Mobile,
		PasswordHash: a.PasswordHash,
		Verified:     a.Verified,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.OTP != nil {
		it.OTPHash, it.OTPExpiresAt = a.OTP.Hash, a.OTP.ExpiresAt.UnixMilli()
	}
	if a.Reset != nil {
		it.ResetDigest, it.ResetExpiresAt = a.Reset.Hash, a.Reset.ExpiresAt.UnixMilli()
	}
	if u := a.User; u != nil {
		it.FullName, it.TermsAccepted = u.FullName, u.TermsAccepted
	}
	if o := a.Organizer; o != nil {
		it.OrganizerName, it.OrganizerType = o.OrganizerName, o.OrganizerType
		it.About, it.Location, it.IDProof = o.About, o.Location, o.IDProof
		it.BankAccount, it.IFSC = o.BankAccount, o.IFSC
	}
	return it
}

func (it accountItem) toDomain() *domain.Account {
	a := &domain.Account{
		AccountID:    it.AccountID,
		Kind:         domain.AccountKind(it.Kind),
		Email:        it.Email,
		Mobile:       it.Mobile,
		PasswordHash: it.PasswordHash,
		Verified:     it.Verified,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
	if it.OTPHash != "" {
		a.OTP = &domain.PendingSecret{Hash: it.OTPHash, ExpiresAt: time.UnixMilli(it.OTPExpiresAt).UTC()}
	}
	if it.ResetDigest != "" {
		a.Reset = &domain.PendingSecret{Hash: it.ResetDigest, ExpiresAt: time.UnixMilli(it.ResetExpiresAt).UTC()}
	}
	switch a.Kind {
	case domain.KindUser:
		a.User = &domain.UserProfile{FullName: it.FullName, TermsAccepted: it.TermsAccepted}
	case domain.KindOrganizer:
		a.Organizer = &domain.OrganizerProfile{
			OrganizerName: it.OrganizerName,
			OrganizerType: it.OrganizerType,
			About:         it.About,
			Location:      it.Location,
			IDProof:       it.IDProof,
			BankAccount:   it.BankAccount,
			IFSC:          it.IFSC,
		}
	}
	return a
}

// AccountRepo stores one account kind in its own table. Email and mobile
// uniqueness is held by marker items in the shared uniques table, written in
// the same transaction as the account.
type AccountRepo struct {
	client  API
	table   string
	uniques string
	kind    domain.AccountKind
	now     func() time.Time
}

func NewAccountRepo(client API, kind domain.AccountKind, table, uniquesTable string) *AccountRepo {
	return &AccountRepo{client: client, table: table, uniques: uniquesTable, kind: kind, now: time.Now}
}

func (r *AccountRepo) uniqueKey(field, value string) string {
	return string(r.kind) + "#" + field + "#" + value
}

func (r *AccountRepo) Insert(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(toItem(a))
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(account_id)"),
			}},
			r.markerPut(r.uniqueKey(attrEmail, a.Email), a.AccountID),
			r.markerPut(r.uniqueKey(attrMobile, a.Mobile), a.AccountID),
		},
	})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fmt.Errorf("email or mobile taken: %w", domain.ErrConflict)
	}
	return err
}

func (r *AccountRepo) markerPut(key, accountID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.uniques),
		Item: map[string]types.AttributeValue{
			attrUniqueKey: &types.AttributeValueMemberS{Value: key},
			attrAccountID: &types.AttributeValueMemberS{Value: accountID},
		},
		ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
	}}
}

func (r *AccountRepo) ExistsByEmailOrMobile(ctx context.Context, email, mobile string) (bool, error) {
	for _, key := range []string{r.uniqueKey(attrEmail, email), r.uniqueKey(attrMobile, mobile)} {
		out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(r.uniques),
			Key:            strKey(attrUniqueKey, key),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return false, err
		}
		if out.Item != nil {
			return true, nil
		}
	}
	return false, nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       strKey(attrAccountID, accountID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%s not found: %w", r.kind, domain.ErrNotFound)
	}
	return unmarshalAccount(out.Item)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryOne(ctx, indexEmail, attrEmail, email, nil)
}

// GetByIdentifier treats anything with an "@" as an email, else a mobile.
func (r *AccountRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if strings.Contains(identifier, "@") {
		return r.GetByEmail(ctx, identifier)
	}
	return r.queryOne(ctx, indexMobile, attrMobile, identifier, nil)
}

func (r *AccountRepo) GetByResetDigest(ctx context.Context, digest string, now time.Time) (*domain.Account, error) {
	return r.queryOne(ctx, indexResetDigest, attrResetDigest, digest, &filter{
		expr:  "#exp > :now",
		names: map[string]string{"#exp": attrResetExpiresAt},
		values: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.UnixMilli())},
		},
	})
}

func (r *AccountRepo) Update(ctx context.Context, accountID string, u domain.AccountUpdate) error {
	if u.Empty() {
		return nil
	}
	set, remove := accountUpdateFields(u)
	set[attrUpdatedAt] = r.now().UTC()
	ue, err := buildUpdateExpr(set, remove)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       strKey(attrAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(account_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%s not found: %w", r.kind, domain.ErrNotFound)
	}
	return err
}

// ConsumeReset sets the new password and clears the reset fields, provided
// digest is still pending and unexpired on the item itself.
func (r *AccountRepo) ConsumeReset(ctx context.Context, accountID, digest, passwordHash string, now time.Time) error {
	set, remove := accountUpdateFields(domain.AccountUpdate{PasswordHash: &passwordHash, ClearReset: true})
	set[attrUpdatedAt] = now.UTC()
	ue, err := buildUpdateExpr(set, remove)
	if err != nil {
		return err
	}
	ue.Names["#rd"] = attrResetDigest
	ue.Names["#rx"] = attrResetExpiresAt
	ue.Values[":rd"] = &types.AttributeValueMemberS{Value: digest}
	ue.Values[":now"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.UnixMilli())}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       strKey(attrAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#rd = :rd AND #rx > :now"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("reset token already used or expired: %w", domain.ErrInvalidOrExpiredToken)
	}
	return err
}

// accountUpdateFields maps a partial update onto SET values and REMOVE
// attributes. Clear* wins over the matching setter.
func accountUpdateFields(u domain.AccountUpdate) (map[string]interface{}, []string) {
	set := map[string]interface{}{}
	var remove []string
	if u.PasswordHash != nil {
		set[attrPasswordHash] = *u.PasswordHash
	}
	if u.Verified != nil {
		set[attrVerified] = *u.Verified
	}
	switch {
	case u.ClearOTP:
		remove = append(remove, attrOTPHash, attrOTPExpiresAt)
	case u.OTP != nil:
		set[attrOTPHash] = u.OTP.Hash
		set[attrOTPExpiresAt] = u.OTP.ExpiresAt.UnixMilli()
	}
	switch {
	case u.ClearReset:
		remove = append(remove, attrResetDigest, attrResetExpiresAt)
	case u.Reset != nil:
		set[attrResetDigest] = u.Reset.Hash
		set[attrResetExpiresAt] = u.Reset.ExpiresAt.UnixMilli()
	}
	return set, remove
}

type filter struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

func (r *AccountRepo) queryOne(ctx context.Context, index, attr, value string, f *filter) (*domain.Account, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
	if f != nil {
		in.FilterExpression = aws.String(f.expr)
		for k, v := range f.names {
			in.ExpressionAttributeNames[k] = v
		}
		for k, v := range f.values {
			in.ExpressionAttributeValues[k] = v
		}
	} else {
		// Limit applies before the filter, so only set it when unfiltered.
		in.Limit = aws.Int32(1)
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%s not found: %w", r.kind, domain.ErrNotFound)
	}
	return unmarshalAccount(out.Items[0])
}

func unmarshalAccount(item map[string]types.AttributeValue) (*domain.Account, error) {
	var it accountItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return it.toDomain(), nil
}
