package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/domain"
)

// IntakeRepo stores contact messages, registrations and startup
// applications. Records use their json tags as attribute names.
type IntakeRepo struct {
	client API
	tables config.Dynamo
}

func NewIntakeRepo(client API, tables config.Dynamo) *IntakeRepo {
	return &IntakeRepo{client: client, tables: tables}
}

func marshalJSONTagged(v interface{}) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(v, func(o *attributevalue.EncoderOptions) {
		o.TagKey = "json"
	})
}

// InsertContact writes the contact together with an email marker so a second
// message from the same address is a conflict.
func (r *IntakeRepo) InsertContact(ctx context.Context, c *domain.Contact) error {
	item, err := marshalJSONTagged(c)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName: aws.String(r.tables.Contacts),
				Item:      item,
			}},
			{Put: &types.Put{
				TableName: aws.String(r.tables.Uniques),
				Item: map[string]types.AttributeValue{
					attrUniqueKey: &types.AttributeValueMemberS{Value: "contact#email#" + c.Email},
					"contact_id":  &types.AttributeValueMemberS{Value: c.ContactID},
				},
				ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
			}},
		},
	})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fmt.Errorf("email already exist: %w", domain.ErrConflict)
	}
	return err
}

func (r *IntakeRepo) InsertRegistration(ctx context.Context, reg *domain.Registration) error {
	return r.put(ctx, r.tables.Registrations, reg)
}

func (r *IntakeRepo) InsertStartupApplication(ctx context.Context, a *domain.StartupApplication) error {
	return r.put(ctx, r.tables.StartupApplications, a)
}

func (r *IntakeRepo) put(ctx context.Context, table string, v interface{}) error {
	item, err := marshalJSONTagged(v)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", table, err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	return err
}
